package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meatlens/backend/internal/domain"
)

const listings = `{"products":[
	{"name":"אנטריקוט אנגוס","price":189.9,"store":"shufersal"},
	{"name":"אנטריקוט אנגוס","price":179.9,"store":"victory"},
	{"name":"נתח קצבים מיוחד","price":99,"store":"victory"},
	{"name":"יוגורט תות","price":5.9,"store":"victory"}
]}`

type testEnv struct {
	dir        string
	configPath string
	inputPath  string
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	env := testEnv{
		dir:        dir,
		configPath: filepath.Join(dir, "config.yaml"),
		inputPath:  filepath.Join(dir, "listings.json"),
	}

	yaml := strings.Join([]string{
		"log:",
		"  level: error",
		"learning:",
		"  store: file",
		"  path: " + filepath.Join(dir, "learning_log.json"),
		"  report_dir: " + filepath.Join(dir, "reports"),
		"reference:",
		"  path: " + filepath.Join(dir, "reference.json"),
	}, "\n")
	require.NoError(t, os.WriteFile(env.configPath, []byte(yaml), 0o644))
	require.NoError(t, os.WriteFile(env.inputPath, []byte(listings), 0o644))
	return env
}

// run executes one meatctl invocation the way Execute does
func run(t *testing.T, env testEnv, stdin string, args ...string) (string, error) {
	t.Helper()
	root, opts := newRootCommand()

	out := new(bytes.Buffer)
	root.SetOut(out)
	root.SetErr(new(bytes.Buffer))
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--config", env.configPath}, args...))

	ctx := context.Background()
	err := root.ExecuteContext(ctx)
	require.NoError(t, opts.teardown(ctx))
	return out.String(), err
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	root := NewRootCommand()
	names := make([]string, 0)
	for _, cmd := range root.Commands() {
		names = append(names, cmd.Name())
	}

	assert.Contains(t, names, "classify")
	assert.Contains(t, names, "unify")
	assert.Contains(t, names, "filter")
	assert.Contains(t, names, "learning")
	assert.Contains(t, names, "reference")
}

func TestClassifyCommand(t *testing.T) {
	env := newTestEnv(t)
	writeReference(t, env)

	out, err := run(t, env, "", "classify", "--input", env.inputPath, "--site", "weekly")
	require.NoError(t, err)

	var response struct {
		Results []domain.ClassifiedProduct `json:"results"`
		Report  domain.LearningReport      `json:"report"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &response))
	require.Len(t, response.Results, 4)
	assert.Equal(t, "angus", response.Results[0].Result.Grade)
	assert.Equal(t, "victory", response.Results[1].Product.StoreName)
	assert.True(t, response.Results[2].Result.IsUnknown())
	assert.Equal(t, "weekly", response.Report.Site)
	assert.Equal(t, 4, response.Report.Processed)

	stats, err := run(t, env, "", "learning", "stats")
	require.NoError(t, err)
	assert.Contains(t, stats, `"totalProductsProcessed": 4`)

	reports, err := os.ReadDir(filepath.Join(env.dir, "reports"))
	require.NoError(t, err)
	assert.Len(t, reports, 1)
}

func TestClassifyCommand_Stdin(t *testing.T) {
	env := newTestEnv(t)
	writeReference(t, env)

	out, err := run(t, env, `[{"name":"כנפיים","price":29.9}]`, "classify", "--input", "-", "--source", "secondary")
	require.NoError(t, err)
	assert.Contains(t, out, `"baseCut": "כנפיים"`)
	assert.Contains(t, out, `"source": "secondary"`)
}

func TestClassifyCommand_InputErrors(t *testing.T) {
	env := newTestEnv(t)
	writeReference(t, env)

	_, err := run(t, env, "", "classify")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no input")

	_, err = run(t, env, "", "classify", "--input", env.inputPath, "--source", "tertiary")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--source")

	_, err = run(t, env, "", "classify", "--input", filepath.Join(env.dir, "missing.json"))
	assert.Error(t, err)
}

func TestUnifyCommand(t *testing.T) {
	env := newTestEnv(t)
	writeReference(t, env)

	out, err := run(t, env, "", "unify", "--input", env.inputPath, "--cycle", "cycle-42")
	require.NoError(t, err)

	var response struct {
		CycleID   string                  `json:"cycleId"`
		Unified   []domain.UnifiedProduct `json:"unified"`
		Count     int                     `json:"count"`
		Persisted bool                    `json:"persisted"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &response))
	assert.Equal(t, "cycle-42", response.CycleID)
	assert.False(t, response.Persisted)
	require.NotEmpty(t, response.Unified)
	assert.Equal(t, 2, response.Unified[0].MatchedProductsCount)
	assert.Equal(t, 179.9, response.Unified[0].BestPrice)
}

func TestFilterCommand(t *testing.T) {
	env := newTestEnv(t)
	writeReference(t, env)

	out, err := run(t, env, "", "filter", "--input", env.inputPath)
	require.NoError(t, err)
	assert.Contains(t, out, `"verdict": "remove"`)
	assert.Contains(t, out, "יוגורט")
}

func TestLearningApproveCommand(t *testing.T) {
	env := newTestEnv(t)
	writeReference(t, env)

	_, err := run(t, env, "", "classify", "--input", env.inputPath)
	require.NoError(t, err)

	out, err := run(t, env, "", "learning", "approve", "--name", "נתח קצבים מיוחד", "--cut", "אנטריקוט")
	require.NoError(t, err)
	assert.Contains(t, out, "reference version 2")

	// the approval is persisted to the reference file and survives a restart
	out, err = run(t, env, `[{"name":"נתח קצבים מיוחד"}]`, "classify", "--input", "-")
	require.NoError(t, err)
	assert.Contains(t, out, `"baseCut": "אנטריקוט"`)

	_, err = run(t, env, "", "learning", "approve", "--name", "x")
	assert.Error(t, err, "--cut is required")
}

func TestLearningReviewAndDismiss(t *testing.T) {
	env := newTestEnv(t)
	writeReference(t, env)

	_, err := run(t, env, "", "classify", "--input", env.inputPath)
	require.NoError(t, err)

	out, err := run(t, env, "", "learning", "review")
	require.NoError(t, err)

	var queue []domain.ReviewItem
	require.NoError(t, json.Unmarshal([]byte(out), &queue))
	require.NotEmpty(t, queue)

	out, err = run(t, env, "", "learning", "dismiss", queue[0].ID)
	require.NoError(t, err)
	assert.Contains(t, out, "dismissed")

	_, err = run(t, env, "", "learning", "dismiss", queue[0].ID)
	assert.ErrorIs(t, err, domain.ErrReviewItemNotFound)
}

func TestLearningReportsCommand(t *testing.T) {
	env := newTestEnv(t)
	writeReference(t, env)

	_, err := run(t, env, "", "classify", "--input", env.inputPath, "--site", "weekly")
	require.NoError(t, err)

	out, err := run(t, env, "", "learning", "reports", "--site", "weekly", "--limit", "5")
	require.NoError(t, err)

	var reports []domain.LearningReport
	require.NoError(t, json.Unmarshal([]byte(out), &reports))
	require.Len(t, reports, 1)
	assert.Equal(t, "weekly", reports[0].Site)
	assert.Equal(t, 4, reports[0].Processed)

	out, err = run(t, env, "", "learning", "reports", "--site", "other")
	require.NoError(t, err)
	assert.JSONEq(t, "[]", out)
}

func TestGradeKeywordCommand(t *testing.T) {
	env := newTestEnv(t)
	writeReference(t, env)

	out, err := run(t, env, "", "learning", "grade-keyword", "זהב", "premium")
	require.NoError(t, err)
	assert.Contains(t, out, "reference version 2")

	_, err = run(t, env, "", "learning", "grade-keyword", "זהב")
	assert.Error(t, err)
}

func TestReferenceCommand(t *testing.T) {
	env := newTestEnv(t)
	writeReference(t, env)

	out, err := run(t, env, "", "reference")
	require.NoError(t, err)

	var tables domain.ReferenceTables
	require.NoError(t, json.Unmarshal([]byte(out), &tables))
	assert.Equal(t, 1, tables.Version)
	assert.NotEmpty(t, tables.Grades)
}

func TestBadConfigFails(t *testing.T) {
	env := newTestEnv(t)
	env.configPath = filepath.Join(env.dir, "absent.yaml")

	_, err := run(t, env, "", "reference")
	assert.Error(t, err)
}
