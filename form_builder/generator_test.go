package form_builder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serisow/coalmind/generation"
	"github.com/serisow/coalmind/pipeline_type"
	"github.com/serisow/coalmind/query_validator"
	"github.com/serisow/coalmind/services/llm_service"
	"github.com/serisow/coalmind/services/rag_service"
	"github.com/serisow/coalmind/vector_store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubValidator struct {
	verdict query_validator.Verdict
	queries []string
}

func (v *stubValidator) Validate(_ context.Context, query string) query_validator.Verdict {
	v.queries = append(v.queries, query)
	return v.verdict
}

type stubRetriever struct {
	chunks pipeline_type.RetrievedContext
	err    error
	k      int
}

func (r *stubRetriever) Query(_ context.Context, _ string, k int) (pipeline_type.RetrievedContext, error) {
	r.k = k
	return r.chunks, r.err
}

func newGenerator(v QueryValidator, r vector_store.Retriever, mock *llm_service.MockLLMService) *Generator {
	return NewGenerator(v, r, generation.NewController(mock, discardLogger()), 0, discardLogger())
}

func TestGenerateFormSuccess(t *testing.T) {
	mock := &llm_service.MockLLMService{CallLLMFunc: llm_service.ScriptedResponses("<json>" + exampleForm + "</json>")}
	retriever := &stubRetriever{chunks: pipeline_type.RetrievedContext{
		{Text: "Roof bolts every 1.2m.", SourceID: "dgms.pdf", Score: 0.9},
		{Text: "Test anchorage weekly.", SourceID: "dgms.pdf", Score: 0.7},
	}}

	res, err := newGenerator(&stubValidator{verdict: query_validator.Verdict{Accepted: true}}, retriever, mock).
		GenerateForm(context.Background(), "Roof bolting in a longwall panel")

	require.NoError(t, err)
	require.True(t, res.OK(), res.Message())
	assert.Equal(t, "Belt Conveyor Pre-Shift Inspection", res.Value["form_name"])
	assert.Equal(t, DefaultTopK, retriever.k)
	assert.Equal(t, 1, mock.Calls())

	p := mock.Prompts()[0]
	assert.Contains(t, p, "User request: Roof bolting in a longwall panel")
	first := strings.Index(p, "- Roof bolts every 1.2m.")
	second := strings.Index(p, "- Test anchorage weekly.")
	assert.True(t, first >= 0 && second > first, "context not rendered closest first")
	assert.Contains(t, p, `"form_name": "Belt Conveyor Pre-Shift Inspection"`)
}

func TestGenerateFormRejected(t *testing.T) {
	mock := &llm_service.MockLLMService{}
	retriever := &stubRetriever{}

	res, err := newGenerator(&stubValidator{verdict: query_validator.Verdict{Reason: "Unrelated to coal mining."}}, retriever, mock).
		GenerateForm(context.Background(), "Form for grocery store operations")

	require.NoError(t, err)
	assert.Equal(t, generation.StatusRejected, res.Status)
	assert.Equal(t, "Unrelated to coal mining.", res.Reason)
	assert.Zero(t, mock.Calls())
	assert.Zero(t, retriever.k)
}

func TestGenerateFormRetrievalError(t *testing.T) {
	mock := &llm_service.MockLLMService{}
	retriever := &stubRetriever{err: vector_store.ErrIndexNotLoaded}

	_, err := newGenerator(&stubValidator{verdict: query_validator.Verdict{Accepted: true}}, retriever, mock).
		GenerateForm(context.Background(), "Shotfiring checklist")

	assert.ErrorIs(t, err, vector_store.ErrIndexNotLoaded)
	assert.Zero(t, mock.Calls())
}

func TestGenerateFormTooFewSectionsIsCorrected(t *testing.T) {
	short := `{"form_name": "x", "form_description": "y", "sections": []}`
	mock := &llm_service.MockLLMService{CallLLMFunc: llm_service.ScriptedResponses(short, exampleForm)}

	res, err := newGenerator(&stubValidator{verdict: query_validator.Verdict{Accepted: true}}, &stubRetriever{}, mock).
		GenerateForm(context.Background(), "Ventilation survey")

	require.NoError(t, err)
	require.True(t, res.OK())
	assert.Equal(t, 2, res.Attempts)
	assert.Contains(t, mock.Prompts()[1], "sections: expected min_items=4, found 0")
}

func TestGenerateFormSelectWithoutOptionsIsCorrected(t *testing.T) {
	var form map[string]any
	require.NoError(t, json.Unmarshal([]byte(exampleForm), &form))
	stripped := ""
	for i, s := range form["sections"].([]any) {
		for j, f := range s.(map[string]any)["fields"].([]any) {
			field := f.(map[string]any)
			if field["variant"] == "Select" && stripped == "" {
				delete(field, "options")
				stripped = fmt.Sprintf("sections[%d].fields[%d].options", i, j)
			}
		}
	}
	require.NotEmpty(t, stripped, "example form has no Select field")
	broken, err := json.Marshal(form)
	require.NoError(t, err)

	mock := &llm_service.MockLLMService{CallLLMFunc: llm_service.ScriptedResponses(string(broken), exampleForm)}
	res, err := newGenerator(&stubValidator{verdict: query_validator.Verdict{Accepted: true}}, &stubRetriever{}, mock).
		GenerateForm(context.Background(), "Belt conveyor pre-shift inspection")

	require.NoError(t, err)
	require.True(t, res.OK(), res.Message())
	assert.Equal(t, 2, res.Attempts)
	assert.Contains(t, mock.Prompts()[1], stripped+": expected non-empty list of object when variant is one of")
}

func TestFormFromDocument(t *testing.T) {
	doc := `{"form_name": "Gas Test Record", "form_description": "Methane readings", "sections": [
		{"section_name": "Readings", "fields": [
			{"label": "CH4 %", "name": "ch4", "type": "Number", "description": "Methane", "placeholder": "0.0", "variant": "Input", "checked": false, "rowIndex": 0}
		]}
	]}`
	mock := &llm_service.MockLLMService{CallLLMFunc: llm_service.ScriptedResponses(doc)}
	validator := &stubValidator{}

	res, err := newGenerator(validator, &stubRetriever{}, mock).
		FormFromDocument(context.Background(), "gas_test.txt", []byte("GAS TEST RECORD\nLocation: ____  CH4 %: ____"))

	require.NoError(t, err)
	require.True(t, res.OK(), res.Message())
	assert.Equal(t, "Gas Test Record", res.Value["form_name"])
	assert.Empty(t, validator.queries, "documents are not validated as requests")
	assert.Contains(t, mock.Prompts()[0], "Location: ____  CH4 %: ____")
}

func TestFormFromDocumentUnsupported(t *testing.T) {
	mock := &llm_service.MockLLMService{}
	_, err := newGenerator(&stubValidator{}, &stubRetriever{}, mock).
		FormFromDocument(context.Background(), "scan.tiff", []byte("II*"))
	assert.ErrorIs(t, err, rag_service.ErrUnsupportedFileType)
	assert.Zero(t, mock.Calls())
}
