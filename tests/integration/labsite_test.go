// Package integration runs the labsite binary against trees on disk.
package integration

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/avitech-lab/labsite/internal/sitetest"
)

var (
	labsiteBinary     string
	labsiteBinaryOnce sync.Once
	labsiteBinaryErr  error
)

// getBinary builds the labsite binary once and returns its path.
func getBinary(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go toolchain not on PATH")
	}
	labsiteBinaryOnce.Do(func() {
		_, filename, _, ok := runtime.Caller(0)
		if !ok {
			labsiteBinaryErr = os.ErrInvalid
			return
		}
		moduleRoot := filepath.Dir(filepath.Dir(filepath.Dir(filename)))

		tmpDir, err := os.MkdirTemp("", "labsite-test-*")
		if err != nil {
			labsiteBinaryErr = err
			return
		}
		labsiteBinary = filepath.Join(tmpDir, "labsite")

		cmd := exec.Command("go", "build", "-o", labsiteBinary, "./cmd/labsite")
		cmd.Dir = moduleRoot
		if output, err := cmd.CombinedOutput(); err != nil {
			labsiteBinaryErr = &buildError{output: string(output), err: err}
		}
	})
	if labsiteBinaryErr != nil {
		t.Fatalf("failed to build labsite: %v", labsiteBinaryErr)
	}
	return labsiteBinary
}

type buildError struct {
	output string
	err    error
}

func (e *buildError) Error() string {
	return e.err.Error() + ": " + e.output
}

// result is one run of the binary.
type result struct {
	stdout string
	stderr string
	code   int
}

// run executes labsite inside dir with an empty global config.
func run(t *testing.T, dir string, args ...string) result {
	t.Helper()
	cmd := exec.Command(getBinary(t), args...)
	cmd.Dir = dir
	var env []string
	for _, kv := range os.Environ() {
		if !strings.HasPrefix(kv, "LABSITE_") {
			env = append(env, kv)
		}
	}
	cmd.Env = append(env, "XDG_CONFIG_HOME="+filepath.Join(dir, ".test-config"))

	var stdout, stderr bytes.Buffer
	cmd.Stdout, cmd.Stderr = &stdout, &stderr
	err := cmd.Run()

	r := result{stdout: stdout.String(), stderr: stderr.String()}
	var exitErr *exec.ExitError
	switch {
	case errors.As(err, &exitErr):
		r.code = exitErr.ExitCode()
	case err != nil:
		t.Fatalf("running labsite %v: %v", args, err)
	}
	return r
}

func decode(t *testing.T, r result, v interface{}) {
	t.Helper()
	if err := json.Unmarshal([]byte(r.stdout), v); err != nil {
		t.Fatalf("parsing output: %v\nstdout: %s\nstderr: %s", err, r.stdout, r.stderr)
	}
}

type report struct {
	Status string `json:"status"`
	Issues []struct {
		Type string `json:"type"`
	} `json:"issues"`
}

func issueTypes(r report) []string {
	var out []string
	for _, is := range r.Issues {
		out = append(out, is.Type)
	}
	return out
}

func TestContributionWorkflow(t *testing.T) {
	s := sitetest.New(t)

	r := run(t, s.Root, "contributor", "new", "DoHaiSon")
	if r.code != 0 {
		t.Fatalf("contributor new exit %d: %s", r.code, r.stdout)
	}
	var created struct {
		Files   []string `json:"files"`
		Pending []string `json:"pending"`
	}
	decode(t, r, &created)
	if len(created.Files) != 3 || len(created.Pending) != 1 || created.Pending[0] != "profiles/DoHaiSon/DoHaiSon.png" {
		t.Errorf("created = %+v", created)
	}

	if r := run(t, s.Root, "contributor", "new", "DoHaiSon"); r.code != 3 {
		t.Errorf("second contributor new exit %d, want 3", r.code)
	}

	r = run(t, s.Root, "check", "--strict")
	if r.code != 3 {
		t.Fatalf("check --strict on an incomplete contribution exit %d: %s", r.code, r.stdout)
	}
	var rep report
	decode(t, r, &rep)
	if got := strings.Join(issueTypes(rep), ","); got != "empty_bib,missing_image" {
		t.Errorf("issues = %s", got)
	}

	s.WritePNG("profiles/DoHaiSon/DoHaiSon.png", 128, 128)
	s.Write("bibs/DoHaiSon.bib", sitetest.Bib)
	s.Write("profiles/DoHaiSon/DoHaiSon_en.html", sitetest.Page("<p>Do Hai Son works on RIS.</p>"))

	r = run(t, s.Root, "check", "--strict")
	if r.code != 0 {
		t.Fatalf("check --strict exit %d: %s", r.code, r.stdout)
	}
	decode(t, r, &rep)
	if rep.Status != "ok" {
		t.Errorf("status = %q", rep.Status)
	}

	r = run(t, s.Root, "merge")
	if r.code != 0 {
		t.Fatalf("merge exit %d: %s", r.code, r.stdout)
	}
	merged := s.Read("scripts/publications/AVITECH.bib")
	if !strings.Contains(merged, "@article{Son2023RIS,") {
		t.Errorf("merged output lacks the citation:\n%s", merged)
	}

	r = run(t, s.Root, "pubs", "index")
	if r.code != 0 {
		t.Fatalf("pubs index exit %d: %s %s", r.code, r.stdout, r.stderr)
	}

	r = run(t, s.Root, "pubs", "search", "intelligent", "surfaces")
	var pubs []struct {
		Key         string `json:"key"`
		Contributor string `json:"contributor"`
	}
	decode(t, r, &pubs)
	if len(pubs) != 1 || pubs[0].Key != "Son2023RIS" || pubs[0].Contributor != "DoHaiSon" {
		t.Errorf("search = %+v", pubs)
	}

	r = run(t, s.Root, "pubs", "stats")
	var stats struct {
		Total  int `json:"total"`
		ByYear []struct {
			Year  int `json:"year"`
			Count int `json:"count"`
		} `json:"by_year"`
	}
	decode(t, r, &stats)
	if stats.Total != 1 || len(stats.ByYear) != 1 || stats.ByYear[0].Year != 2023 {
		t.Errorf("stats = %+v", stats)
	}

	r = run(t, s.Root, "pubs", "export")
	if lines := strings.Split(strings.TrimSpace(r.stdout), "\n"); len(lines) != 1 || !strings.Contains(lines[0], `"key":"Son2023RIS"`) {
		t.Errorf("export = %q", r.stdout)
	}
}

func TestMerge_DryRunWritesNothing(t *testing.T) {
	s := sitetest.New(t)
	s.AddContributor("DoHaiSon", sitetest.Bib+"\n@article{Son2015Old,\n  author = {Do Hai Son},\n  title = {Early Work},\n  journal = {REV},\n  year = {2015}\n}\n")

	r := run(t, s.Root, "merge", "--dry-run")
	if r.code != 0 {
		t.Fatalf("merge --dry-run exit %d: %s", r.code, r.stdout)
	}
	var res struct {
		Status string `json:"status"`
		Stats  struct {
			Kept          int `json:"kept"`
			BeforeMinYear int `json:"before_min_year"`
		} `json:"stats"`
	}
	decode(t, r, &res)
	if res.Status != "dry_run" || res.Stats.Kept != 1 || res.Stats.BeforeMinYear != 1 {
		t.Errorf("merge = %+v", res)
	}
	if _, err := os.Stat(s.Path("scripts/publications/AVITECH.bib")); !os.IsNotExist(err) {
		t.Errorf("dry run wrote the output: %v", err)
	}

	r = run(t, s.Root, "merge", "--dry-run", "--min-year", "2010")
	decode(t, r, &res)
	if res.Stats.Kept != 2 {
		t.Errorf("with --min-year 2010 kept %d, want 2", res.Stats.Kept)
	}
}

func TestReview_Ownership(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	s := sitetest.New(t)
	s.AddContributor("DoHaiSon", sitetest.Bib)
	s.AddContributor("TranThiThuyQuynh", "")

	git := func(args ...string) {
		t.Helper()
		out, err := exec.Command("git", append([]string{"-C", s.Root}, args...)...).CombinedOutput()
		if err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out)
		}
	}
	// keep the test's global config out of the tree's changes
	s.Write(".gitignore", ".test-config/\n")
	git("init", "-q", "-b", "main")
	git("config", "user.email", "test@example.com")
	git("config", "user.name", "Test")
	git("config", "commit.gpgsign", "false")
	git("add", "-A")
	git("commit", "-q", "-m", "initial")
	git("checkout", "-q", "-b", "feature")

	s.Write("profiles/DoHaiSon/DoHaiSon_en.html", sitetest.Page("<p>Updated bio.</p>"))
	r := run(t, s.Root, "review", "--base", "main")
	if r.code != 0 {
		t.Fatalf("review of one contributor exit %d: %s", r.code, r.stdout)
	}
	var res struct {
		Clean        bool     `json:"clean"`
		Contributors []string `json:"contributors"`
	}
	decode(t, r, &res)
	if !res.Clean || len(res.Contributors) != 1 {
		t.Errorf("review = %+v", res)
	}

	s.Write("bibs/TranThiThuyQuynh.bib", sitetest.Bib)
	if r := run(t, s.Root, "review", "--base", "main"); r.code != 4 {
		t.Errorf("review across two contributors exit %d, want 4: %s", r.code, r.stdout)
	}
}

func TestNoTree(t *testing.T) {
	dir := t.TempDir()
	r := run(t, dir, "check")
	if r.code != 2 {
		t.Errorf("check outside a tree exit %d, want 2", r.code)
	}
	if !strings.Contains(r.stderr, "No site tree found") {
		t.Errorf("stderr = %q", r.stderr)
	}
}

func TestRootFlagAndConfigShow(t *testing.T) {
	s := sitetest.New(t)
	s.Write("labsite.yml", "languages: [en, vn]\nmerge:\n  min_year: 2020\n")
	elsewhere := t.TempDir()

	r := run(t, elsewhere, "--root", s.Root, "config", "show")
	if r.code != 0 {
		t.Fatalf("config show exit %d: %s %s", r.code, r.stdout, r.stderr)
	}
	var cfg struct {
		Root string `json:"root"`
		Tree struct {
			BibsDir string `json:"bibs_dir"`
			Merge   struct {
				MinYear int `json:"min_year"`
			} `json:"merge"`
		} `json:"tree"`
	}
	decode(t, r, &cfg)
	if cfg.Tree.BibsDir != "bibs" || cfg.Tree.Merge.MinYear != 2020 {
		t.Errorf("config = %+v", cfg)
	}
}

func TestPubs_WithoutIndex(t *testing.T) {
	s := sitetest.New(t)
	if r := run(t, s.Root, "pubs", "list"); r.code != 2 {
		t.Errorf("pubs list without index exit %d, want 2", r.code)
	}
}

func TestPubsGet_FromSnapshot(t *testing.T) {
	s := sitetest.New(t)
	s.Write("snapshot.jsonl", `{"key":"Son2023RIS","doi":"10.1109/access.2023.1","type":"article","title":"RIS","authors":null,"year":2023,"contributor":"DoHaiSon"}`+"\n")

	for _, id := range []string{"Son2023RIS", "10.1109/access.2023.1"} {
		r := run(t, s.Root, "pubs", "get", "--from", "snapshot.jsonl", id)
		if r.code != 0 {
			t.Fatalf("pubs get %s exit %d: %s %s", id, r.code, r.stdout, r.stderr)
		}
		var p struct {
			Key string `json:"key"`
		}
		decode(t, r, &p)
		if p.Key != "Son2023RIS" {
			t.Errorf("pubs get %s = %+v", id, p)
		}
	}

	if r := run(t, s.Root, "pubs", "get", "--from", "snapshot.jsonl", "Nope2020"); r.code != 3 {
		t.Errorf("pubs get of an unknown key exit %d, want 3", r.code)
	}
}

func TestConfigInit(t *testing.T) {
	s := sitetest.New(t)

	if r := run(t, s.Root, "config", "init"); r.code != 0 {
		t.Fatalf("config init exit %d: %s %s", r.code, r.stdout, r.stderr)
	}
	if !strings.Contains(s.Read("labsite.yml"), "manual_duplicates:") {
		t.Errorf("labsite.yml = %s", s.Read("labsite.yml"))
	}
	if r := run(t, s.Root, "config", "init"); r.code != 3 {
		t.Errorf("second config init exit %d, want 3", r.code)
	}
	if r := run(t, s.Root, "config", "init", "--force"); r.code != 0 {
		t.Errorf("config init --force exit %d", r.code)
	}

	r := run(t, s.Root, "config", "show")
	var cfg struct {
		ConfigFile string `json:"config_file"`
	}
	decode(t, r, &cfg)
	if filepath.Base(cfg.ConfigFile) != "labsite.yml" {
		t.Errorf("config_file = %q", cfg.ConfigFile)
	}
}
