package formtree_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/formtree"
	"github.com/aretw0/formtree/pkg/adapters/memory"
)

// ExampleNew_memory opens a form over an in-memory questionnaire, answers it and
// reads the dependent state back.
func ExampleNew_memory() {
	loader, err := memory.NewLoaderFromJSON(`{
		"resourceType": "Questionnaire",
		"id": "smoking",
		"item": [
			{"linkId": "smoker", "type": "boolean", "required": true},
			{"linkId": "packs", "type": "integer",
			 "enableWhen": [{"question": "smoker", "operator": "=", "answerBoolean": true}]}
		]
	}`)
	if err != nil {
		log.Fatal(err)
	}

	// The path is empty because a loader is provided.
	engine, err := formtree.New("", formtree.WithLoader(loader))
	if err != nil {
		log.Fatal(err)
	}

	f, err := engine.Open(context.Background(), "smoking", nil)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Dispose()

	packs, _ := f.Question("packs")
	fmt.Println("packs enabled:", packs.IsEnabled())

	_ = f.SetAnswer("smoker", true)
	_ = f.SetAnswer("packs", 2)
	fmt.Println("packs enabled:", packs.IsEnabled())
	fmt.Println("valid:", f.ValidateAll())

	for _, item := range f.Response().Item {
		fmt.Printf("%s = %v\n", item.LinkID, item.Answer[0].Raw())
	}

	// Output:
	// packs enabled: false
	// packs enabled: true
	// valid: true
	// smoker = true
	// packs = 2
}

// ExampleEngine_Validate validates a stored response against its questionnaire.
func ExampleEngine_Validate() {
	loader, err := memory.NewLoaderFromJSON(`{
		"resourceType": "Questionnaire",
		"id": "contact",
		"item": [{"linkId": "email", "type": "string", "required": true, "maxLength": 5}]
	}`)
	if err != nil {
		log.Fatal(err)
	}
	engine, err := formtree.New("", formtree.WithLoader(loader))
	if err != nil {
		log.Fatal(err)
	}

	res, err := engine.Validate(context.Background(), "contact", nil)
	if err != nil {
		log.Fatal(err)
	}
	for _, issue := range res.Issues {
		fmt.Println(issue)
	}

	// Output:
	// email: An answer is required. (required)
}
