/*
Package domain contains the core data models of the formtree runtime.

It defines the immutable questionnaire template, the response document produced from
a live form, and the validation issues attached to it. The shapes follow the FHIR
Questionnaire and QuestionnaireResponse resources closely enough to be marshaled to
and from their JSON form. This package is kept pure and free of I/O or persistence.

# Key Entities

  - Questionnaire / Item: the template tree (linkId, type, cardinality, extensions).
  - Value: the value[x] union shared by answers, answer options and initial values.
  - QuestionnaireResponse / ResponseItem / ResponseAnswer: the serialized output.
  - Issue: a structured validation diagnostic.
  - LifecycleHooks: callbacks fired by a live form.
*/
package domain
