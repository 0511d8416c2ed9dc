/*
Package dsl provides a Go DSL (Domain Specific Language) for programmatically constructing questionnaires.

It allows developers to define forms using a type-safe, fluent builder pattern instead of
hand-writing Questionnaire JSON. This is particularly useful for unit testing and for
generating forms dynamically.

Example usage:

	package main

	import (
		"github.com/aretw0/formtree/pkg/domain"
		"github.com/aretw0/formtree/pkg/dsl"
		"github.com/aretw0/formtree/pkg/form"
	)

	func main() {
		b := dsl.New("intake")

		b.Add("smoker", domain.TypeBoolean).
			Text("Do you smoke?")

		b.Add("packs", domain.TypeInteger).
			Text("Packs per day").
			EnableWhen("smoker", domain.OpEqual, domain.Bool(true))

		f := form.New(b.Build())
		defer f.Dispose()
		// ...
	}
*/
package dsl
