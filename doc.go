/*
Package formtree is a reactive runtime for FHIR Questionnaires.

It turns an immutable Questionnaire template into a live form tree: questions hold
answers, groups hold children, repeating groups hold occurrences. Every derived
property (enablement, visibility, bounds, answer options, calculated values and
validation issues) recomputes automatically when the answers it reads change, and
the form can be serialized to a QuestionnaireResponse at any time.

# Layout

  - pkg/domain: the template, response and issue models.
  - pkg/form: the live form tree and its validation.
  - pkg/fhirpath: the FHIRPath subset used by dynamic expressions.
  - pkg/session: concurrent, persisted form sessions.
  - pkg/adapters: questionnaire loaders (loam, file, memory) and response stores (file, redis, memory).

# Usage

The Engine wires a loader and a store. New defaults to a Loam loader over dir and an
in-memory store.

	package main

	import (
		"context"
		"fmt"
		"log"

		"github.com/aretw0/formtree"
	)

	func main() {
		eng, err := formtree.New("./questionnaires")
		if err != nil {
			log.Fatal(err)
		}

		ctx := context.Background()
		f, err := eng.Open(ctx, "intake", nil)
		if err != nil {
			log.Fatal(err)
		}
		defer f.Dispose()

		if err := f.SetAnswer("name", "Ada"); err != nil {
			log.Fatal(err)
		}
		if !f.ValidateAll() {
			for _, issue := range f.Issues() {
				fmt.Println(issue)
			}
		}
	}
*/
package formtree
