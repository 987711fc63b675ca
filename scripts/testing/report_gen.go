// Command report_gen turns `go test -json` output into JSON, Markdown and
// HTML test reports. It cross-references each test with the annotation
// block above its declaration (TestPurpose, Scope, Security, Expected,
// Test Case ID) so the reports read as a traceability matrix, not just a
// pass/fail list. Tests that never ran still appear, marked "not run".
//
// Usage:
//
//	go test ./... -json > /tmp/tests.json
//	go run scripts/testing/report_gen.go -input /tmp/tests.json \
//	    -out-json reports/tests.json -out-md reports/tests.md
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"html/template"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const modulePath = "github.com/ciguard/ciguard"

// annotation is the structured doc block above a test function.
type annotation struct {
	Name       string `json:"name"`
	Purpose    string `json:"purpose,omitempty"`
	Scope      string `json:"scope,omitempty"`
	Security   string `json:"security,omitempty"`
	Expected   string `json:"expected,omitempty"`
	TestCaseID string `json:"test_case_id,omitempty"`
	Package    string `json:"package"`
	Category   string `json:"category"`
	Type       string `json:"type"` // UT, SYSTEM, E2E
}

// event is one line of `go test -json` output.
type event struct {
	Action  string  `json:"Action"`
	Package string  `json:"Package"`
	Test    string  `json:"Test"`
	Elapsed float64 `json:"Elapsed"`
	Output  string  `json:"Output"`
}

// outcome is the merged result for one test or subtest.
type outcome struct {
	Name        string     `json:"name"`
	Status      string     `json:"status"`
	Elapsed     float64    `json:"elapsed_seconds"`
	Package     string     `json:"package"`
	Failure     string     `json:"failure_reason,omitempty"`
	Annotations annotation `json:"annotations"`
}

type report struct {
	GeneratedAt time.Time `json:"generated_at"`
	Total       int       `json:"total"`
	Passed      int       `json:"passed"`
	Failed      int       `json:"failed"`
	Skipped     int       `json:"skipped"`
	Results     []outcome `json:"results"`
}

func (r report) PassRate() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.Passed) / float64(r.Total) * 100
}

func main() {
	input := flag.String("input", "", "path to go test -json output")
	outJSON := flag.String("out-json", "", "path for the JSON report")
	outMD := flag.String("out-md", "", "path for the Markdown report")
	outHTML := flag.String("out-html", "", "path for the HTML report (optional)")
	title := flag.String("title", "Test Report", "report title")
	onlyCats := flag.String("filter-categories", "", "comma-separated categories to include")
	skipCats := flag.String("exclude-categories", "", "comma-separated categories to exclude")
	onlyType := flag.String("filter-type", "", "include only this test type (UT, SYSTEM, E2E)")
	skipType := flag.String("exclude-type", "", "exclude this test type")
	flag.Parse()

	if *input == "" || *outJSON == "" || *outMD == "" {
		fmt.Println("Usage: report_gen -input <json_file> -out-json <out_json> -out-md <out_md>")
		os.Exit(1)
	}

	annotations := scanAnnotations(".")
	results := mergeEvents(*input, annotations)
	results = filterResults(results, *onlyCats, *skipCats, *onlyType, *skipType)
	sort.Slice(results, func(i, j int) bool {
		if results[i].Package != results[j].Package {
			return results[i].Package < results[j].Package
		}
		return results[i].Name < results[j].Name
	})

	rep := report{GeneratedAt: time.Now(), Results: results}
	for _, r := range results {
		rep.Total++
		switch r.Status {
		case "pass":
			rep.Passed++
		case "fail":
			rep.Failed++
		case "skip":
			rep.Skipped++
		}
	}

	writeJSON(rep, *outJSON)
	writeMarkdown(rep, *outMD, *title)
	if *outHTML != "" {
		writeHTML(rep, *outHTML, *title)
	}

	if rep.Failed > 0 {
		fmt.Printf("\n❌ Test Reporting: %d tests failed. Exiting with error.\n", rep.Failed)
		os.Exit(1)
	}
}

// annotationKeys maps doc-comment prefixes onto annotation fields.
var annotationKeys = map[string]func(*annotation, string){
	"TestPurpose:":  func(a *annotation, v string) { a.Purpose = v },
	"Scope:":        func(a *annotation, v string) { a.Scope = v },
	"Security:":     func(a *annotation, v string) { a.Security = v },
	"Expected:":     func(a *annotation, v string) { a.Expected = v },
	"Test Case ID:": func(a *annotation, v string) { a.TestCaseID = v },
}

// scanAnnotations parses every _test.go file under root and indexes the
// annotation blocks by "package.TestName".
func scanAnnotations(root string) map[string]annotation {
	index := make(map[string]annotation)
	fset := token.NewFileSet()

	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			name := d.Name()
			if name == "vendor" || name == ".git" || strings.HasPrefix(name, "_") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, "_test.go") {
			return nil
		}

		file, err := parser.ParseFile(fset, path, nil, parser.ParseComments)
		if err != nil {
			return nil
		}
		pkg := packagePath(path)

		for _, decl := range file.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok || !strings.HasPrefix(fn.Name.Name, "Test") {
				continue
			}
			a := annotation{
				Name:     fn.Name.Name,
				Package:  pkg,
				Type:     testType(pkg),
				Category: category(pkg, fn.Name.Name),
			}
			if fn.Doc != nil {
				for _, line := range fn.Doc.List {
					text := strings.TrimSpace(strings.TrimPrefix(line.Text, "//"))
					for prefix, set := range annotationKeys {
						if strings.HasPrefix(text, prefix) {
							set(&a, strings.TrimSpace(strings.TrimPrefix(text, prefix)))
							break
						}
					}
				}
			}
			index[pkg+"."+fn.Name.Name] = a
		}
		return nil
	})

	return index
}

func packagePath(filePath string) string {
	dir := filepath.ToSlash(filepath.Dir(filePath))
	dir = strings.TrimPrefix(dir, "./")
	if dir == "." {
		return modulePath
	}
	return modulePath + "/" + dir
}

// testType reads the suite from the package path: tests/system and
// tests/e2e carry their own types, everything else is a unit test.
func testType(pkg string) string {
	rel := strings.TrimPrefix(pkg, modulePath+"/")
	if rest, ok := strings.CutPrefix(rel, "tests/"); ok {
		suite, _, _ := strings.Cut(rest, "/")
		return strings.ToUpper(suite)
	}
	return "UT"
}

// categoryRules maps package path fragments onto report categories. First
// match wins, so more specific fragments come first.
var categoryRules = []struct {
	fragment string
	category string
}{
	{"internal/acl", "ACL"},
	{"internal/decision", "Decision"},
	{"internal/authconfig", "Configuration"},
	{"internal/token", "Tokens"},
	{"internal/adminsource", "Admin Sync"},
	{"internal/permission", "Permissions"},
	{"internal/audit", "Audit"},
	{"internal/store/postgres", "Store"},
}

func category(pkg, testName string) string {
	for _, rule := range categoryRules {
		if strings.Contains(pkg, rule.fragment) {
			return rule.category
		}
	}
	if strings.Contains(pkg, "transport/http") {
		if strings.Contains(testName, "Security") {
			return "Security API"
		}
		return "API"
	}
	if t := testType(pkg); t != "UT" {
		return t + " Tests"
	}
	return "Other"
}

// categoryOrder fixes the section order of the reports. Categories not
// listed here render after these, alphabetically.
var categoryOrder = []string{
	"Permissions", "ACL", "Configuration", "Decision", "Tokens",
	"Admin Sync", "Audit", "Store", "API", "Security API",
	"SYSTEM Tests", "E2E Tests", "Other",
}

// orderedCategories returns the grouping keys of results in render order.
func orderedCategories(groups map[string][]outcome) []string {
	seen := make(map[string]bool, len(categoryOrder))
	var ordered []string
	for _, cat := range categoryOrder {
		seen[cat] = true
		if len(groups[cat]) > 0 {
			ordered = append(ordered, cat)
		}
	}
	var extras []string
	for cat := range groups {
		if !seen[cat] {
			extras = append(extras, cat)
		}
	}
	sort.Strings(extras)
	return append(ordered, extras...)
}

func groupByCategory(results []outcome) map[string][]outcome {
	groups := make(map[string][]outcome)
	for _, r := range results {
		cat := r.Annotations.Category
		if cat == "" {
			cat = "Uncategorized"
		}
		groups[cat] = append(groups[cat], r)
	}
	return groups
}

// mergeEvents folds the test-json event stream into one outcome per test.
// Tests known from annotations but absent from the stream stay "not run";
// subtests inherit the annotation block of their parent.
func mergeEvents(path string, annotations map[string]annotation) []outcome {
	states := make(map[string]*outcome, len(annotations))
	for key, a := range annotations {
		states[key] = &outcome{Name: a.Name, Package: a.Package, Status: "not run", Annotations: a}
	}

	file, err := os.Open(path)
	if err != nil {
		fmt.Printf("Error opening test output: %v\n", err)
		return nil
	}
	defer file.Close()

	output := make(map[string]*strings.Builder)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var ev event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil || ev.Test == "" {
			continue
		}

		key := ev.Package + "." + ev.Test
		res, ok := states[key]
		if !ok {
			res = &outcome{Name: ev.Test, Package: ev.Package, Annotations: resolveAnnotation(ev, annotations)}
			states[key] = res
		}

		switch ev.Action {
		case "pass", "fail":
			res.Status = ev.Action
			res.Elapsed = ev.Elapsed
		case "skip":
			res.Status = "skip"
		case "output":
			sb, ok := output[key]
			if !ok {
				sb = &strings.Builder{}
				output[key] = sb
			}
			sb.WriteString(ev.Output)
		}
	}

	results := make([]outcome, 0, len(states))
	for key, res := range states {
		if res.Status == "fail" {
			if sb, ok := output[key]; ok {
				res.Failure = sb.String()
			}
		}
		results = append(results, *res)
	}
	return results
}

// resolveAnnotation finds the annotation for a test the scan did not index,
// walking up the subtest chain ("TestParent/sub/case" -> "TestParent").
func resolveAnnotation(ev event, annotations map[string]annotation) annotation {
	if parent, _, ok := strings.Cut(ev.Test, "/"); ok {
		if a, found := annotations[ev.Package+"."+parent]; found {
			a.Name = ev.Test
			if a.Purpose != "" {
				a.Purpose += " (Subtest: " + ev.Test + ")"
			}
			return a
		}
	}
	return annotation{
		Name:     ev.Test,
		Package:  ev.Package,
		Type:     testType(ev.Package),
		Category: category(ev.Package, ev.Test),
	}
}

func filterResults(results []outcome, onlyCats, skipCats, onlyType, skipType string) []outcome {
	inList := func(list, item string) bool {
		for _, entry := range strings.Split(list, ",") {
			if strings.TrimSpace(entry) == item {
				return true
			}
		}
		return false
	}

	var out []outcome
	for _, r := range results {
		if onlyCats != "" && !inList(onlyCats, r.Annotations.Category) {
			continue
		}
		if skipCats != "" && inList(skipCats, r.Annotations.Category) {
			continue
		}
		if onlyType != "" && !strings.EqualFold(r.Annotations.Type, onlyType) {
			continue
		}
		if skipType != "" && strings.EqualFold(r.Annotations.Type, skipType) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func statusIcon(status string) string {
	switch status {
	case "fail":
		return "❌"
	case "skip":
		return "⏭️"
	case "not run":
		return "⚪"
	default:
		return "✅"
	}
}

func writeJSON(rep report, path string) {
	data, _ := json.MarshalIndent(rep, "", "  ")
	writeFile(path, data)
}

func writeMarkdown(rep report, path, title string) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Ciguard %s\n\n", title)
	fmt.Fprintf(&sb, "**Generated:** %s  \n", rep.GeneratedAt.Format("2006-01-02 15:04:05 MST"))

	status := "✅ PASSED"
	if rep.Failed > 0 {
		status = "❌ FAILED"
	}
	fmt.Fprintf(&sb, "**Status:** %s\n\n", status)

	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Total | Passed | Failed | Skipped | Pass Rate |\n")
	sb.WriteString("|-------|--------|--------|---------|-----------|\n")
	fmt.Fprintf(&sb, "| %d | %d | %d | %d | %.1f%% |\n\n", rep.Total, rep.Passed, rep.Failed, rep.Skipped, rep.PassRate())

	sb.WriteString("## Test Results by Category\n\n")
	groups := groupByCategory(rep.Results)
	for _, cat := range orderedCategories(groups) {
		fmt.Fprintf(&sb, "### %s\n\n", cat)
		sb.WriteString("| ID | Test Name | Status | Purpose | Security |\n")
		sb.WriteString("|----|-----------|--------|---------|----------|\n")
		for _, t := range groups[cat] {
			security := t.Annotations.Security
			if security != "" {
				security = "**" + security + "**"
			}
			fmt.Fprintf(&sb, "| %s | %s | %s | %s | %s |\n",
				t.Annotations.TestCaseID, t.Name, statusIcon(t.Status), t.Annotations.Purpose, security)
		}
		sb.WriteString("\n")
	}

	if rep.Failed > 0 {
		sb.WriteString("## Failure Details\n\n")
		for _, t := range rep.Results {
			if t.Status == "fail" {
				fmt.Fprintf(&sb, "### %s (%s)\n```\n%s\n```\n\n", t.Name, t.Package, t.Failure)
			}
		}
	}

	sb.WriteString("---\n*Report generated by Ciguard Test Infrastructure*\n")
	writeFile(path, []byte(sb.String()))
}

var htmlReport = template.Must(template.New("report").Funcs(template.FuncMap{
	"icon": statusIcon,
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Ciguard - {{.Title}}</title>
<style>
  :root { --primary: #2563eb; --success: #10b981; --danger: #ef4444; --warning: #f59e0b; --bg: #f8fafc; --text: #1e293b; --border: #e2e8f0; }
  body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif; background: var(--bg); color: var(--text); line-height: 1.5; margin: 0; padding: 2rem; }
  .container { max-width: 1000px; margin: 0 auto; background: white; padding: 2rem; border-radius: 8px; box-shadow: 0 1px 3px rgba(0,0,0,0.1); }
  h1 { margin-top: 0; border-bottom: 2px solid var(--border); padding-bottom: 0.5rem; }
  .meta { color: #64748b; margin-bottom: 2rem; }
  .status-badge { display: inline-block; padding: 0.25rem 0.75rem; border-radius: 9999px; font-weight: 600; font-size: 0.875rem; }
  .status-pass { background: #dcfce7; color: #166534; }
  .status-fail { background: #fee2e2; color: #991b1b; }
  .summary-grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(150px, 1fr)); gap: 1rem; margin-bottom: 2rem; }
  .summary-card { background: var(--bg); padding: 1rem; border-radius: 6px; text-align: center; border: 1px solid var(--border); }
  .summary-val { display: block; font-size: 1.5rem; font-weight: 700; }
  .summary-label { font-size: 0.75rem; text-transform: uppercase; color: #64748b; letter-spacing: 0.05em; }
  table { width: 100%; border-collapse: collapse; margin-top: 1rem; }
  th { text-align: left; background: #f1f5f9; padding: 0.75rem; border-bottom: 2px solid var(--border); }
  td { padding: 0.75rem; border-bottom: 1px solid var(--border); font-size: 0.875rem; vertical-align: top; }
  .col-id { width: 100px; color: #64748b; font-family: ui-monospace, SFMono-Regular, monospace; font-size: 0.75rem; }
  .col-name { width: 250px; font-weight: 500; word-break: break-all; }
  .col-status { width: 80px; text-align: center; }
  .cat-header { background: #f8fafc; padding: 0.5rem 1rem; margin-top: 2rem; border-left: 4px solid var(--primary); font-weight: 600; }
  .failure-box { background: #0f172a; color: #f8fafc; padding: 1rem; border-radius: 4px; overflow-x: auto; font-family: ui-monospace, SFMono-Regular, Menlo, Monaco, Consolas, monospace; font-size: 0.75rem; margin-bottom: 1rem; }
  .security-mark { color: var(--warning); font-weight: 600; }
</style>
</head>
<body>
<div class="container">
<h1>{{.Title}}</h1>
<div class="meta">Generated at: {{.Report.GeneratedAt.Format "2006-01-02 15:04:05 MST"}} |
Status: {{if gt .Report.Failed 0}}<span class="status-badge status-fail">FAILED</span>{{else}}<span class="status-badge status-pass">PASSED</span>{{end}}</div>
<div class="summary-grid">
  <div class="summary-card"><span class="summary-val">{{.Report.Total}}</span><span class="summary-label">Total</span></div>
  <div class="summary-card"><span class="summary-val" style="color: var(--success)">{{.Report.Passed}}</span><span class="summary-label">Passed</span></div>
  <div class="summary-card"><span class="summary-val" style="color: var(--danger)">{{.Report.Failed}}</span><span class="summary-label">Failed</span></div>
  <div class="summary-card"><span class="summary-val">{{.Report.Skipped}}</span><span class="summary-label">Skipped</span></div>
  <div class="summary-card"><span class="summary-val">{{printf "%.1f%%" .Report.PassRate}}</span><span class="summary-label">Pass Rate</span></div>
</div>
<h2>Test Results</h2>
{{range $cat := .Categories}}
<div class="cat-header">{{$cat}}</div>
<table>
<thead><tr><th class="col-id">ID</th><th class="col-name">Test Name</th><th class="col-status">Status</th><th>Purpose</th><th>Security</th></tr></thead>
<tbody>
{{range index $.Groups $cat}}<tr>
  <td class="col-id">{{.Annotations.TestCaseID}}</td>
  <td class="col-name"><code>{{.Name}}</code></td>
  <td class="col-status">{{icon .Status}}</td>
  <td>{{.Annotations.Purpose}}</td>
  <td>{{if .Annotations.Security}}<span class="security-mark">🛡️ {{.Annotations.Security}}</span>{{end}}</td>
</tr>
{{end}}</tbody>
</table>
{{end}}
{{if gt .Report.Failed 0}}<h2>Failure Details</h2>
{{range .Report.Results}}{{if eq .Status "fail"}}<h3>{{.Name}}</h3>
<div class="failure-box"><pre>{{.Failure}}</pre></div>
{{end}}{{end}}{{end}}
<p style="margin-top: 3rem; color: #64748b; font-size: 0.75rem; text-align: center;">&copy; {{.Year}} Ciguard Project | Generated by Test Infrastructure</p>
</div>
</body>
</html>
`))

func writeHTML(rep report, path, title string) {
	groups := groupByCategory(rep.Results)
	data := struct {
		Title      string
		Report     report
		Groups     map[string][]outcome
		Categories []string
		Year       int
	}{
		Title:      title,
		Report:     rep,
		Groups:     groups,
		Categories: orderedCategories(groups),
		Year:       rep.GeneratedAt.Year(),
	}

	var sb strings.Builder
	if err := htmlReport.Execute(&sb, data); err != nil {
		fmt.Printf("Error rendering HTML report: %v\n", err)
		return
	}
	writeFile(path, []byte(sb.String()))
}

func writeFile(path string, data []byte) {
	_ = os.MkdirAll(filepath.Dir(path), 0755)
	if err := os.WriteFile(path, data, 0644); err != nil {
		fmt.Printf("Error writing %s: %v\n", path, err)
	}
}
