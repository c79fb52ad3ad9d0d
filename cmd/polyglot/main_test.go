package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes the root command with a config path that does not exist, so
// only defaults and the environment apply.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "none.yaml")}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestTranscodeCmd(t *testing.T) {
	out, err := run(t, `{"model":"gpt-4o","messages":[{"role":"user","content":"Hi"}]}`,
		"transcode", "--from", "openai", "--to", "claude", "-")
	require.NoError(t, err)
	assert.Contains(t, out, `"max_tokens": 4000`)

	_, err = run(t, "{}", "transcode", "--from", "cohere")
	assert.ErrorContains(t, err, "unknown api type")
}

func TestTranscodeCmd_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resp.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"id":"msg_1","type":"message","role":"assistant","model":"claude-3-haiku-20240307","content":[{"type":"text","text":"Hello"}],"stop_reason":"end_turn","stop_sequence":null,"usage":{"input_tokens":3,"output_tokens":1}}`), 0o644))

	out, err := run(t, "", "transcode", "--from", "anthropic", "--to", "openai", "--kind", "response", path)
	require.NoError(t, err)
	assert.Contains(t, out, `"finish_reason": "stop"`)
}

func TestAssembleCmd(t *testing.T) {
	body := strings.Join([]string{
		`{"id":"c1","object":"chat.completion.chunk","created":1,"model":"gpt-4o","choices":[{"index":0,"delta":{"role":"assistant","content":"Hey"},"finish_reason":null}]}`,
		`{"id":"c1","object":"chat.completion.chunk","created":1,"model":"gpt-4o","choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`,
		`[DONE]`,
	}, "\n")
	out, err := run(t, body, "assemble", "--provider", "openai", "--format", "ndjson")
	require.NoError(t, err)
	assert.Contains(t, out, `"content": "Hey"`)
}

func TestTokensCmd(t *testing.T) {
	out, err := run(t,
		`{"model":"gpt-4o","messages":[{"role":"system","content":"You are a helpful assistant."},{"role":"user","content":"hi, how are you"}]}`,
		"tokens", "--model", "gpt-3.5-turbo-1106")
	require.NoError(t, err)
	assert.Contains(t, out, "system")
	assert.Contains(t, out, "gpt-3.5-turbo-1106: 22 tokens")
}

func TestPriceCmd(t *testing.T) {
	out, err := run(t, "", "price", "--model", "gpt-4o", "--prompt", "1000", "--completion", "1000")
	require.NoError(t, err)
	assert.Contains(t, out, "cost (USD):")

	_, err = run(t, "", "price")
	assert.Error(t, err)
}
