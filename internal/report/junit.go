package report

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

type junitTestSuites struct {
	XMLName  xml.Name         `xml:"testsuites"`
	Tests    int              `xml:"tests,attr"`
	Failures int              `xml:"failures,attr"`
	Errors   int              `xml:"errors,attr"`
	Skipped  int              `xml:"skipped,attr"`
	Time     string           `xml:"time,attr"`
	Suites   []junitTestSuite `xml:"testsuite"`
}

type junitTestSuite struct {
	Name      string          `xml:"name,attr"`
	Tests     int             `xml:"tests,attr"`
	Failures  int             `xml:"failures,attr"`
	Errors    int             `xml:"errors,attr"`
	Skipped   int             `xml:"skipped,attr"`
	Time      string          `xml:"time,attr"`
	TestCases []junitTestCase `xml:"testcase"`
}

type junitTestCase struct {
	Name      string        `xml:"name,attr"`
	ClassName string        `xml:"classname,attr"`
	Time      string        `xml:"time,attr"`
	Failure   *junitFailure `xml:"failure,omitempty"`
	Error     *junitFailure `xml:"error,omitempty"`
	Skipped   *junitSkipped `xml:"skipped,omitempty"`
}

type junitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Body    string `xml:",chardata"`
}

type junitSkipped struct {
	Message string `xml:"message,attr,omitempty"`
}

// WriteJUnit writes the report as one JUnit suite per test directory.
// Crashes and timeouts are errors; other failures are failures.
func WriteJUnit(w io.Writer, rep *Report) error {
	encoded, err := xml.MarshalIndent(buildJUnit(rep), "", "  ")
	if err != nil {
		return err
	}
	document := append([]byte(xml.Header), encoded...)
	document = append(document, '\n')
	_, err = w.Write(document)
	return err
}

func buildJUnit(rep *Report) junitTestSuites {
	var (
		suites []junitTestSuite
		index  = make(map[string]int)
		total  junitTestSuites
	)
	for _, res := range rep.Results {
		class, name := splitID(res.ID)
		idx, ok := index[class]
		if !ok {
			idx = len(suites)
			index[class] = idx
			suites = append(suites, junitTestSuite{Name: "uitest." + class})
		}
		s := &suites[idx]

		tc := junitTestCase{Name: name, ClassName: class, Time: seconds(res.Duration.Seconds())}
		switch res.Status {
		case Failed:
			kind := ReasonKind("failed")
			if len(res.Reasons) > 0 {
				kind = res.Reasons[0].Kind
			}
			f := &junitFailure{
				Message: firstReason(res),
				Type:    string(kind),
				Body:    failureBody(res),
			}
			if res.Crashed() || kind == KindTimeout {
				tc.Error = f
				s.Errors++
			} else {
				tc.Failure = f
				s.Failures++
			}
		case Ignored:
			tc.Skipped = &junitSkipped{Message: res.Ignore}
			s.Skipped++
		}
		s.Tests++
		s.TestCases = append(s.TestCases, tc)
	}

	for _, s := range suites {
		total.Tests += s.Tests
		total.Failures += s.Failures
		total.Errors += s.Errors
		total.Skipped += s.Skipped
	}
	for i := range suites {
		var sum float64
		for _, res := range rep.Results {
			if class, _ := splitID(res.ID); "uitest."+class == suites[i].Name {
				sum += res.Duration.Seconds()
			}
		}
		suites[i].Time = seconds(sum)
	}
	total.Time = seconds(rep.Duration.Seconds())
	total.Suites = suites
	return total
}

func splitID(id string) (class, name string) {
	i := strings.LastIndexByte(id, '/')
	if i < 0 {
		return "root", id
	}
	return strings.ReplaceAll(id[:i], "/", "."), id[i+1:]
}

func seconds(s float64) string {
	return fmt.Sprintf("%.3f", s)
}

func firstReason(res Result) string {
	if len(res.Reasons) == 0 {
		return "failed"
	}
	return res.Reasons[0].String()
}

func failureBody(res Result) string {
	var b strings.Builder
	for _, r := range res.Reasons {
		b.WriteString(r.String())
		b.WriteString("\n")
		if r.Expected != "" || r.Actual != "" {
			fmt.Fprintf(&b, "  expected: %s\n  actual:   %s\n", r.Expected, r.Actual)
		}
		if r.Detail != "" {
			b.WriteString(r.Detail)
			if !strings.HasSuffix(r.Detail, "\n") {
				b.WriteString("\n")
			}
		}
	}
	return b.String()
}
