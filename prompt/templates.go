package prompt

import (
	"github.com/serisow/coalmind/pipeline_type"
)

// RenderContext is the mainline rendering of retrieved chunks: one bullet per
// chunk, closest first, without source attribution.
func RenderContext(rc pipeline_type.RetrievedContext) string {
	if len(rc) == 0 {
		return "- (no relevant knowledge base entries)"
	}
	return rc.Bulleted()
}

const FormTemplate = `You are an expert form designer for coal mine operations. Design a form that documents the operation below.

User request: {query}

Knowledge base information (use only what is relevant to the request):
{context}

The form must:
1. Capture the technical, safety and operational details of the operation.
2. Cover personnel, equipment, regulatory compliance, and risk assessment with mitigation.
3. Mix quantitative and qualitative fields and prefer variants such as Checkbox, Select and Multi Select where they fit.

Here is an example form for reference:
{example}

{format_instructions}`

const FormFromDocumentTemplate = `You convert documents into structured digital forms for coal mine operations.
Reproduce the sections and fields of the document below. Keep the document's own section names and field labels, and pick the closest variant for every field.

Document:
{document}

{format_instructions}`

const HazardAnalysisTemplate = `Perform a detailed hazard analysis for the coal mining activity "{activity_name}".

Additional information from the user (use it only if it is clear and relevant): {input_info}

Knowledge base information (use only what is relevant):
{context}

Real time data:
- IoT sensors: {iot_data}
- Shift records: {shift_data}
- User and task records: {user_data}
- Existing safety management plan: {smp_data}

For each hazard:
- Describe the possible outcome and existing control measures, and note any gaps.
- Score probability, exposure and consequences using only these scale values:
{scales}
- Set risk_score to probability * exposure * consequences.
- Propose at most two additional control measures with a responsible party and a priority.
- Give the residual impact after the additional measures.
Tailor the analysis to underground operations, equipment, environment, worker safety and regulatory compliance.

{format_instructions}`

const FormQueryValidationTemplate = `You are a domain expert in coal mine operations and form design. Decide whether the request below is a valid request to generate a form for coal mine operations.

A request is invalid when it lacks information about the operation or process (for example "Generate a form"), or when it is unrelated to coal mining (for example "Form for grocery store operations"). Otherwise it is valid.

Request: {query}

{format_instructions}`

const SMPQueryValidationTemplate = `Decide whether the request below is a valid request to generate a Safety Management Plan for a coal mining activity.

A valid request names a clear coal mining activity or process, gives enough context for safety planning, and is relevant to coal mine operations.

Request: {query}

{format_instructions}`

const ChatbotTemplate = `You are an assistant for coal mine operations in India. Answer the question using the knowledge base information below. If the information does not contain the answer, say so instead of guessing.

Knowledge base information:
{context}

Question: {question}

Answer:`

const JSONQuestionTemplate = `Answer the question using only the JSON document below. Reply with a short plain-text summary of at most five sentences. If the document does not contain the answer, reply "no relevant data".

Question: {question}

JSON document:
{document}`

const PlotTemplate = `You turn questions about a dataset into chart configurations.

Dataset description:
{dataset}

Question: {question}

Only reference columns that exist in the dataset. Put a one or two sentence explanation of the chart inside <explain></explain> tags before the JSON.

{format_instructions}`

// CorrectionTemplate is sent once after an unusable response. It repeats the
// original prompt verbatim and states what was wrong.
const CorrectionTemplate = `{original_prompt}

Your previous response could not be accepted:
{errors}

Regenerate the complete response so that it fixes every problem listed above.

{format_instructions}`

// Builtins names every template used by the pipelines.
var Builtins = map[string]string{
	"form":                  FormTemplate,
	"form_from_document":    FormFromDocumentTemplate,
	"hazard_analysis":       HazardAnalysisTemplate,
	"form_query_validation": FormQueryValidationTemplate,
	"smp_query_validation":  SMPQueryValidationTemplate,
	"chatbot":               ChatbotTemplate,
	"json_question":         JSONQuestionTemplate,
	"plot":                  PlotTemplate,
	"correction":            CorrectionTemplate,
}
