package json

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func read(t *testing.T, in string, opt Options) ([]string, [][]any) {
	t.Helper()
	f, err := ReadFrame(context.Background(), strings.NewReader(in), opt)
	require.NoError(t, err)
	rows := make([][]any, f.Len())
	for i := range rows {
		rows[i] = f.Row(i)
	}
	return f.Columns(), rows
}

func TestReadFrame_RootArray(t *testing.T) {
	cols, rows := read(t, `[{"id":1,"name":"a"},{"id":2,"name":"b","score":1.5}]`, Options{})
	assert.Equal(t, []string{"id", "name", "score"}, cols)
	assert.Equal(t, [][]any{{int64(1), "a", nil}, {int64(2), "b", 1.5}}, rows)
}

func TestReadFrame_Envelope(t *testing.T) {
	in := `{"total_count": 2, "items": [{"full_name":"a/b","stargazers_count":42},{"full_name":"c/d","stargazers_count":7}]}`
	cols, rows := read(t, in, Options{})
	assert.Equal(t, []string{"full_name", "stargazers_count"}, cols)
	assert.Len(t, rows, 2)

	_, rows = read(t, in, Options{Field: "items", MaxRows: 1})
	assert.Equal(t, [][]any{{"a/b", int64(42)}}, rows)

	_, err := ReadFrame(context.Background(), strings.NewReader(in), Options{Field: "total_count"})
	assert.ErrorContains(t, err, "not an array of objects")
	_, err = ReadFrame(context.Background(), strings.NewReader(in), Options{Field: "nope"})
	assert.ErrorContains(t, err, "not found")
}

func TestReadFrame_SingleObjectAndNDJSON(t *testing.T) {
	cols, rows := read(t, `{"full_name":"PrefectHQ/Prefect","stargazers_count":15000,"owner":{"login":"PrefectHQ"}}`, Options{})
	assert.Equal(t, []string{"full_name", "owner", "stargazers_count"}, cols)
	assert.Equal(t, [][]any{{"PrefectHQ/Prefect", `{"login":"PrefectHQ"}`, int64(15000)}}, rows)

	_, rows = read(t, "{\"a\":1}\n{\"a\":2}\n{\"a\":null}\n", Options{})
	assert.Equal(t, [][]any{{int64(1)}, {int64(2)}, {nil}}, rows)
}

func TestReadFrame_NormalizeHeaders(t *testing.T) {
	cols, _ := read(t, `[{"Full Name":"x","full-name":"y"}]`, Options{NormalizeHeaders: true})
	assert.Equal(t, []string{"full_name", "full_name_1"}, cols)
}

func TestReadFrame_Errors(t *testing.T) {
	for name, in := range map[string]string{
		"Empty":      "",
		"Scalar":     "42",
		"MixedArray": `[{"a":1}, 2]`,
		"Broken":     `[{"a":1}`,
		"NoFields":   `[{}]`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ReadFrame(context.Background(), strings.NewReader(in), Options{})
			assert.Error(t, err)
		})
	}
}
