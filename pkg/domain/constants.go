package domain

// Canonical extension URLs understood by the runtime.
const (
	fhirSD = "http://hl7.org/fhir/StructureDefinition/"
	sdcSD  = "http://hl7.org/fhir/uv/sdc/StructureDefinition/"

	ExtMinOccurs        = fhirSD + "questionnaire-minOccurs"
	ExtMaxOccurs        = fhirSD + "questionnaire-maxOccurs"
	ExtMinValue         = fhirSD + "minValue"
	ExtMaxValue         = fhirSD + "maxValue"
	ExtMinLength        = fhirSD + "minLength"
	ExtMaxDecimalPlaces = fhirSD + "maxDecimalPlaces"
	ExtMinQuantity      = fhirSD + "questionnaire-minQuantity"
	ExtMaxQuantity      = fhirSD + "questionnaire-maxQuantity"
	ExtMimeType         = fhirSD + "mimeType"
	ExtMaxSize          = fhirSD + "maxSize"
	ExtHidden           = fhirSD + "questionnaire-hidden"
	ExtItemControl      = fhirSD + "questionnaire-itemControl"
	ExtVariable         = fhirSD + "variable"
	ExtCqfExpression    = fhirSD + "cqf-expression"

	ExtEnableWhenExpression = sdcSD + "sdc-questionnaire-enableWhenExpression"
	ExtCalculatedExpression = sdcSD + "sdc-questionnaire-calculatedExpression"
	ExtInitialExpression    = sdcSD + "sdc-questionnaire-initialExpression"
	ExtAnswerExpression     = sdcSD + "sdc-questionnaire-answerExpression"
)

// Item control codes with structural placement rules.
const (
	ControlGTable = "gtable"
	ControlTable  = "table"
	ControlGrid   = "grid"
)

// ExpressionLanguageFHIRPath is the only expression language evaluated by the runtime.
const ExpressionLanguageFHIRPath = "text/fhirpath"

// ResourceTypeResponse is the resourceType of a response document.
const ResourceTypeResponse = "QuestionnaireResponse"

// Response statuses.
const (
	StatusInProgress = "in-progress"
	StatusCompleted  = "completed"
)
