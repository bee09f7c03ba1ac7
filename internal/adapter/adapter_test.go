package adapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EndeeLabs/endee-web-ui/internal/endee"
	"github.com/EndeeLabs/endee-web-ui/internal/vectorstore"
	"github.com/EndeeLabs/endee-web-ui/internal/vectorstore/fake"
)

func TestAdapter_SuccessEnvelope(t *testing.T) {
	backend := fake.New()
	backend.Indexes["docs"] = vectorstore.IndexInfo{Name: "docs", Dimension: 4}
	a := New(backend)

	res := a.ListIndexes(t.Context())
	require.True(t, res.Success)
	assert.Empty(t, res.Error)
	require.Len(t, res.Data, 1)
	assert.Equal(t, "docs", res.Data[0].Name)
}

func TestAdapter_FailureEnvelope(t *testing.T) {
	backend := fake.New()
	backend.Errs["CreateIndex"] = &endee.APIError{StatusCode: 409, Message: "Index already exists"}
	a := New(backend)

	res := a.CreateIndex(t.Context(), vectorstore.IndexSpec{Name: "docs"})
	assert.False(t, res.Success)
	assert.Equal(t, "Index already exists", res.Error)
}

func TestAdapter_NoRetry(t *testing.T) {
	backend := fake.New()
	backend.Err = errors.New("connection refused")
	a := New(backend)

	res := a.Search(t.Context(), "docs", vectorstore.Query{TopK: 1})
	assert.False(t, res.Success)
	assert.Equal(t, 1, backend.Calls("Query"))
}

func TestAdapter_UnauthorizedTriggersCallback(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"structured 401", &endee.APIError{StatusCode: 401, Message: "denied"}, true},
		{"substring unauthorized", errors.New("Unauthorized access"), true},
		{"substring invalid token", fmt.Errorf("call failed: %w", errors.New("INVALID TOKEN supplied")), true},
		{"plain backend error", &endee.APIError{StatusCode: 500, Message: "disk full"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := fake.New()
			backend.Err = tt.err
			fired := 0
			a := New(backend, WithUnauthorizedHandler(func() { fired++ }))

			res := a.ListBackups(t.Context())
			assert.False(t, res.Success)
			assert.Equal(t, tt.want, res.Unauthorized())
			if tt.want {
				assert.Equal(t, 1, fired)
			} else {
				assert.Zero(t, fired)
			}
		})
	}
}

func TestAdapter_DeleteByFilterReportsCount(t *testing.T) {
	backend := fake.New()
	backend.DeletedByFilter = 9
	a := New(backend)

	res := a.DeleteVectorsByFilter(t.Context(), "docs", json.RawMessage(`{"x":{"$eq":1}}`))
	require.True(t, res.Success)
	assert.Equal(t, 9, res.Data.Count)
	assert.JSONEq(t, `{"x":{"$eq":1}}`, string(backend.LastFilter))
}

func TestAdapter_DownloadURL(t *testing.T) {
	client := endee.NewClient(endee.WithBaseURL("http://db"), endee.WithToken("tok"))
	res := New(client).DownloadURL("b1")
	require.True(t, res.Success)
	assert.Equal(t, "http://db/api/v1/backups/b1/download?token=tok", res.Data)

	res = New(fake.New()).DownloadURL("b1")
	assert.False(t, res.Success)
}

func TestResult_Unwrap(t *testing.T) {
	v, err := Ok(3).Unwrap()
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	_, err = Fail[int]("boom").Unwrap()
	assert.EqualError(t, err, "boom")
}

func TestResult_JSONShape(t *testing.T) {
	raw, err := json.Marshal(Fail[[]string]("nope"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":false,"error":"nope"}`, string(raw))

	raw, err = json.Marshal(Ok([]string{"a"}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"data":["a"]}`, string(raw))
}

func TestClassifyAndMessage(t *testing.T) {
	var syntaxErr *json.SyntaxError
	err := json.Unmarshal([]byte("{"), &map[string]any{})
	require.True(t, errors.As(err, &syntaxErr))

	assert.Equal(t, KindNone, Classify(nil))
	assert.Equal(t, KindUnexpected, Classify(fmt.Errorf("failed to decode response: %w", err)))
	assert.Equal(t, MessageUnexpected, Message(fmt.Errorf("wrapped: %w", err)))
	assert.Equal(t, KindUnauthorized, Classify(vectorstore.ErrUnauthorized))
	assert.Equal(t, KindBackend, Classify(errors.New("timeout")))

	assert.Equal(t, MessageRequestFailed, Message(&endee.APIError{StatusCode: 500}))
	assert.Equal(t, "timeout", Message(errors.New("timeout")))
}

func TestMapPrecision(t *testing.T) {
	assert.Equal(t, vectorstore.PrecisionBinary, MapPrecision("binary"))
	assert.Equal(t, vectorstore.PrecisionInt8D, MapPrecision("INT8D"))
	assert.Equal(t, vectorstore.PrecisionInt16D, MapPrecision("int16d"))
	assert.Equal(t, vectorstore.PrecisionFloat32, MapPrecision("float32"))
	assert.Equal(t, vectorstore.PrecisionFloat16, MapPrecision("float16"))
	assert.Equal(t, vectorstore.PrecisionFloat16, MapPrecision("fp8"))
	assert.Equal(t, vectorstore.PrecisionFloat16, MapPrecision(""))
}

func TestSpaceTypeLabel(t *testing.T) {
	assert.Equal(t, "Cosine", SpaceTypeLabel("cosine"))
	assert.Equal(t, "Euclidean", SpaceTypeLabel("l2"))
	assert.Equal(t, "Inner Product", SpaceTypeLabel("ip"))
	assert.Equal(t, "Unknown", SpaceTypeLabel("hamming"))
}
