package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

// problemPath returns a problem from the harness testdata.
func problemPath(name string) string {
	return filepath.Join("..", "harness", "testdata", "problems", name+".cue")
}

const scenariosDir = "../harness/testdata/scenarios"

// execute runs cmd with args and returns stdout, stderr and the error.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, string, error) {
	t.Helper()
	return executeContext(t, context.Background(), cmd, args...)
}

func executeContext(t *testing.T, ctx context.Context, cmd *cobra.Command, args ...string) (string, string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return out.String(), errOut.String(), err
}

// decodeData unmarshals the data payload of a JSON response into v and
// returns the response status.
func decodeData(t *testing.T, output string, v any) string {
	t.Helper()
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &resp), output)
	if v != nil {
		require.NoError(t, json.Unmarshal(resp.Data, v), output)
	}
	return resp.Status
}
