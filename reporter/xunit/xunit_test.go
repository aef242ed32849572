package xunit

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/ansel1/xunitgen/reporter"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type xmlSuite struct {
	XMLName  xml.Name  `xml:"testsuite"`
	Name     string    `xml:"name,attr"`
	Tests    int       `xml:"tests,attr"`
	Failures int       `xml:"failures,attr"`
	Errors   int       `xml:"errors,attr"`
	Time     string    `xml:"time,attr"`
	Cases    []xmlCase `xml:"testcase"`
}

type xmlCase struct {
	Classname string      `xml:"classname,attr"`
	Name      string      `xml:"name,attr"`
	Time      string      `xml:"time,attr"`
	Failure   *xmlFailure `xml:"failure"`
}

type xmlFailure struct {
	Text string `xml:",chardata"`
}

func decode(t *testing.T, doc string) xmlSuite {
	t.Helper()
	var suite xmlSuite
	require.NoError(t, xml.Unmarshal([]byte(doc), &suite), "document is not well-formed:\n%s", doc)
	return suite
}

func ms(n int64) time.Time {
	return time.UnixMilli(n)
}

func TestBuilder_Document(t *testing.T) {
	var buf bytes.Buffer
	b := New(&buf)

	require.NoError(t, b.TaskStart(ms(0), []string{"ua1"}))
	require.NoError(t, b.FixtureStart("F1"))
	require.NoError(t, b.TestDone("t1", nil, 500, false))
	require.NoError(t, b.TestDone("t2", []error{errors.New("boom")}, 1500, true))
	require.NoError(t, b.TaskDone(1, 2, ms(2000)))

	expected := `<?xml version="1.0" encoding="UTF-8" ?>
<testsuite name="TestCafe Tests: ua1" tests="2" failures="1" errors="1" time="2" timestamp="Thu, 01 Jan 1970 00:00:02 GMT" >
  <testcase classname="F1" name="t1" time="0.5" />
  <testcase classname="F1" name="t2 (unstable)" time="1.5" >
    <failure>
    <![CDATA[
      1) boom
    ]]>
    </failure>
  </testcase>
</testsuite>`

	if diff := cmp.Diff(expected, buf.String()); diff != "" {
		t.Errorf("document mismatch (-want +got):\n%s", diff)
	}

	suite := decode(t, buf.String())
	assert.Equal(t, 2, suite.Tests)
	assert.Equal(t, 1, suite.Failures)
	assert.Equal(t, 1, suite.Errors)
	require.Len(t, suite.Cases, 2)
	assert.Nil(t, suite.Cases[0].Failure)
	require.NotNil(t, suite.Cases[1].Failure)
	assert.Contains(t, suite.Cases[1].Failure.Text, "1) boom")
}

func TestBuilder_NoOutputBeforeTaskDone(t *testing.T) {
	var buf bytes.Buffer
	b := New(&buf)

	require.NoError(t, b.TaskStart(ms(0), []string{"ua1"}))
	require.NoError(t, b.FixtureStart("F1"))
	require.NoError(t, b.TestDone("t1", []error{errors.New("x")}, 1, false))
	assert.Zero(t, buf.Len())

	require.NoError(t, b.TaskDone(0, 1, ms(10)))
	assert.True(t, strings.HasSuffix(buf.String(), "</testsuite>"))
}

func TestBuilder_UserAgentsJoinedInOrder(t *testing.T) {
	var buf bytes.Buffer
	b := New(&buf, WithSuiteName("E2E"))

	require.NoError(t, b.TaskStart(ms(0), []string{"Chrome 120 / macOS", "Firefox <121>", "Chrome 120 / macOS"}))
	require.NoError(t, b.TaskDone(0, 0, ms(0)))

	assert.Contains(t, buf.String(),
		`<testsuite name="E2E: Chrome 120 / macOS, Firefox &lt;121&gt;, Chrome 120 / macOS" tests="0" failures="0" errors="0" time="0" `)
	assert.Equal(t, "E2E: Chrome 120 / macOS, Firefox <121>, Chrome 120 / macOS", decode(t, buf.String()).Name)
}

func TestBuilder_EscapesNames(t *testing.T) {
	var buf bytes.Buffer
	b := New(&buf)

	require.NoError(t, b.TaskStart(ms(0), []string{"ua"}))
	require.NoError(t, b.FixtureStart(`Fixture "A" & <B>`))
	require.NoError(t, b.TestDone(`it's <ok>`, nil, 1, true))
	require.NoError(t, b.TaskDone(1, 1, ms(1)))

	assert.Contains(t, buf.String(),
		`<testcase classname="Fixture &quot;A&quot; &amp; &lt;B&gt;" name="it&#39;s &lt;ok&gt; (unstable)" time="0.001" />`)

	suite := decode(t, buf.String())
	require.Len(t, suite.Cases, 1)
	assert.Equal(t, `Fixture "A" & <B>`, suite.Cases[0].Classname)
	assert.Equal(t, `it's <ok> (unstable)`, suite.Cases[0].Name)
}

func TestBuilder_UnstableSuffixAppliedOnce(t *testing.T) {
	var buf bytes.Buffer
	b := New(&buf)

	require.NoError(t, b.TaskStart(ms(0), []string{"ua"}))
	require.NoError(t, b.TestDone("flaky", nil, 1, true))
	require.NoError(t, b.TestDone("stable", nil, 1, false))
	require.NoError(t, b.TaskDone(2, 2, ms(1)))

	assert.Equal(t, 1, strings.Count(buf.String(), " (unstable)"))
	assert.Contains(t, buf.String(), `name="flaky (unstable)"`)
	assert.Contains(t, buf.String(), `name="stable"`)
}

func TestBuilder_ClassnameIsFixtureAtTestTime(t *testing.T) {
	var buf bytes.Buffer
	b := New(&buf)

	require.NoError(t, b.TaskStart(ms(0), []string{"ua"}))
	require.NoError(t, b.FixtureStart("A"))
	require.NoError(t, b.TestDone("a1", nil, 1, false))
	require.NoError(t, b.TestDone("a2", []error{errors.New("e")}, 1, false))
	require.NoError(t, b.FixtureStart("B"))
	require.NoError(t, b.TestDone("b1", nil, 1, false))
	require.NoError(t, b.FixtureStart("C"))
	require.NoError(t, b.FixtureStart("D"))
	require.NoError(t, b.TestDone("d1", nil, 1, false))
	require.NoError(t, b.TaskDone(3, 4, ms(5)))

	suite := decode(t, buf.String())
	var got []string
	for _, c := range suite.Cases {
		got = append(got, c.Classname+"/"+c.Name)
	}
	assert.Equal(t, []string{"A/a1", "A/a2", "B/b1", "D/d1"}, got)
}

func TestBuilder_OneTestcasePerTestDone(t *testing.T) {
	var buf bytes.Buffer
	b := New(&buf)

	require.NoError(t, b.TaskStart(ms(0), []string{"ua"}))
	require.NoError(t, b.FixtureStart("F"))
	passed := 0
	for i := 0; i < 25; i++ {
		var errs []error
		if i%3 == 0 {
			errs = []error{fmt.Errorf("failure %d", i)}
		} else {
			passed++
		}
		require.NoError(t, b.TestDone(fmt.Sprintf("t%02d", i), errs, float64(i), false))
	}
	require.NoError(t, b.TaskDone(passed, 25, ms(1000)))

	doc := buf.String()
	assert.Equal(t, passed, strings.Count(doc, " />\n"))
	assert.Equal(t, 25-passed, strings.Count(doc, "</testcase>"))
	assert.Equal(t, 25-passed, strings.Count(doc, "<failure>"))

	suite := decode(t, doc)
	require.Len(t, suite.Cases, 25)
	for i, c := range suite.Cases {
		assert.Equal(t, fmt.Sprintf("t%02d", i), c.Name)
		assert.Equal(t, i%3 == 0, c.Failure != nil, c.Name)
	}
	assert.Equal(t, 25-passed, suite.Failures)
	assert.Equal(t, suite.Failures, suite.Errors)
}

func TestBuilder_MultipleErrorsNumberedInOrder(t *testing.T) {
	var buf bytes.Buffer
	b := New(&buf)

	errs := []error{
		errors.New("first"),
		&reporter.TestError{Type: "AssertionError", Message: "second", Stack: []string{"at a (a.js:1:1)"}},
		errors.New("third ]]> attempt"),
	}

	require.NoError(t, b.TaskStart(ms(0), []string{"ua"}))
	require.NoError(t, b.FixtureStart("F"))
	require.NoError(t, b.TestDone("t", errs, 250, false))
	require.NoError(t, b.TaskDone(0, 1, ms(250)))

	doc := buf.String()
	assert.Contains(t, doc, "  <testcase classname=\"F\" name=\"t\" time=\"0.25\" >\n    <failure>\n    <![CDATA[\n      1) first\n\n      2) AssertionError: second\n")
	assert.Contains(t, doc, "at a (a.js:1:1)\n\n      3) third ]]&gt; attempt\n    ]]>\n    </failure>\n  </testcase>\n</testsuite>")

	suite := decode(t, buf.String())
	require.Len(t, suite.Cases, 1)
	text := suite.Cases[0].Failure.Text
	assert.Less(t, strings.Index(text, "1) first"), strings.Index(text, "2) AssertionError"))
	assert.Less(t, strings.Index(text, "2) AssertionError"), strings.Index(text, "3) third"))
}

func TestBuilder_WrapsLongErrors(t *testing.T) {
	var buf bytes.Buffer
	b := New(&buf)

	long := strings.Repeat("expected value to be truthy ", 20)

	require.NoError(t, b.TaskStart(ms(0), []string{"ua"}))
	require.NoError(t, b.TestDone("t", []error{errors.New(long)}, 1, false))
	require.NoError(t, b.TaskDone(0, 1, ms(1)))

	doc := buf.String()
	start := strings.Index(doc, "<![CDATA[") + len("<![CDATA[")
	end := strings.Index(doc, "]]>")
	body := strings.Trim(doc[start:end], "\n ")
	lines := strings.Split(doc[start:end], "\n")

	wrapped := 0
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		wrapped++
		assert.LessOrEqual(t, len(strings.TrimRight(line, " ")), DefaultLineWidth, line)
	}
	assert.Greater(t, wrapped, 1)
	assert.Equal(t, strings.Join(strings.Fields("1) "+long), " "), strings.Join(strings.Fields(body), " "))
}

// cdataLines returns the non-blank lines inside the CDATA section, trailing
// spaces removed.
func cdataLines(doc string) []string {
	start := strings.Index(doc, "<![CDATA[") + len("<![CDATA[")
	end := strings.Index(doc, "]]>")

	var lines []string
	for _, line := range strings.Split(doc[start:end], "\n") {
		if line = strings.TrimRight(line, " "); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func TestBuilder_LineWidth(t *testing.T) {
	long := strings.Repeat("expected value to be truthy ", 10)

	tests := []struct {
		name    string
		width   int
		maxLine int
	}{
		{name: "narrow", width: 40, maxLine: 40},
		{name: "too narrow keeps default", width: 3, maxLine: DefaultLineWidth},
		{name: "zero keeps default", width: 0, maxLine: DefaultLineWidth},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			b := New(&buf, WithLineWidth(tt.width))

			require.NoError(t, b.TaskStart(ms(0), []string{"ua"}))
			require.NoError(t, b.TestDone("t", []error{errors.New(long)}, 1, false))
			require.NoError(t, b.TaskDone(0, 1, ms(1)))

			longest := 0
			for _, line := range cdataLines(buf.String()) {
				longest = max(longest, len(line))
			}
			assert.LessOrEqual(t, longest, tt.maxLine)
			assert.Greater(t, longest, tt.maxLine-20, "lines should use the available width")
		})
	}
}

func TestBuilder_NilErrorDoesNotPanic(t *testing.T) {
	var buf bytes.Buffer
	b := New(&buf)

	require.NoError(t, b.TaskStart(ms(0), []string{"ua"}))
	require.NotPanics(t, func() {
		require.NoError(t, b.TestDone("t", []error{nil, errors.New("boom")}, 1, false))
	})
	require.NoError(t, b.TaskDone(0, 1, ms(1)))

	assert.Equal(t, []string{"      1)", "      2) boom"}, cdataLines(buf.String()))
	suite := decode(t, buf.String())
	require.Len(t, suite.Cases, 1)
	assert.NotNil(t, suite.Cases[0].Failure)
}

func TestBuilder_NilErrorWithCustomFormatter(t *testing.T) {
	var buf bytes.Buffer
	called := 0
	formatter := reporter.ErrorFormatterFunc(func(err error, prefix string) string {
		called++
		return prefix + err.Error()
	})
	b := New(&buf, WithErrorFormatter(formatter))

	require.NoError(t, b.TaskStart(ms(0), []string{"ua"}))
	require.NotPanics(t, func() {
		require.NoError(t, b.TestDone("t", []error{nil}, 1, false))
	})
	assert.Equal(t, 0, called)
}

func TestBuilder_CustomErrorFormatter(t *testing.T) {
	var buf bytes.Buffer
	formatter := reporter.ErrorFormatterFunc(func(err error, prefix string) string {
		return prefix + "[" + err.Error() + "] <details>"
	})
	b := New(&buf, WithErrorFormatter(formatter))

	require.NoError(t, b.TaskStart(ms(0), []string{"ua"}))
	require.NoError(t, b.TestDone("t", []error{errors.New("boom")}, 1, false))
	require.NoError(t, b.TaskDone(0, 1, ms(1)))

	assert.Contains(t, buf.String(), "\n      1) [boom] &lt;details&gt;\n")
}

func TestBuilder_TimeValues(t *testing.T) {
	tests := []struct {
		name       string
		durationMs float64
		expected   string
	}{
		{name: "zero", durationMs: 0, expected: `time="0"`},
		{name: "whole seconds", durationMs: 3000, expected: `time="3"`},
		{name: "milliseconds", durationMs: 1234, expected: `time="1.234"`},
		{name: "fractional milliseconds", durationMs: 0.5, expected: `time="0.0005"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			b := New(&buf)
			require.NoError(t, b.TaskStart(ms(0), []string{"ua"}))
			require.NoError(t, b.TestDone("t", nil, tt.durationMs, false))
			require.NoError(t, b.TaskDone(1, 1, ms(0)))
			assert.Contains(t, buf.String(), `name="t" `+tt.expected+` />`)
		})
	}
}

func TestBuilder_SuiteTimeAndTimestamp(t *testing.T) {
	var buf bytes.Buffer
	b := New(&buf)

	start := time.Date(2024, 3, 1, 9, 59, 58, 750*int(time.Millisecond), time.FixedZone("CET", 3600))
	end := start.Add(61*time.Second + 500*time.Millisecond)

	require.NoError(t, b.TaskStart(start, []string{"ua"}))
	require.NoError(t, b.TaskDone(0, 0, end))

	assert.Contains(t, buf.String(), `time="61.5" timestamp="Fri, 01 Mar 2024 09:01:00 GMT" >`)
}

func TestBuilder_SuiteTimeBeyondDurationRange(t *testing.T) {
	var buf bytes.Buffer
	b := New(&buf)

	// 400 years, more than time.Duration can hold
	end := ms(400 * 365 * 86400 * 1000)

	require.NoError(t, b.TaskStart(ms(0), []string{"ua"}))
	require.NoError(t, b.TaskDone(0, 0, end))

	assert.Contains(t, buf.String(), `time="12614400000" `)
}

func TestBuilder_OutOfOrderCalls(t *testing.T) {
	b := New(io.Discard)

	assert.ErrorIs(t, b.FixtureStart("F"), ErrOutOfOrder)
	assert.ErrorIs(t, b.TestDone("t", nil, 1, false), ErrOutOfOrder)
	assert.ErrorIs(t, b.TaskDone(0, 0, ms(0)), ErrOutOfOrder)

	require.NoError(t, b.TaskStart(ms(0), []string{"ua"}))
	err := b.TaskStart(ms(0), []string{"ua"})
	assert.ErrorIs(t, err, ErrOutOfOrder)
	assert.EqualError(t, err, "lifecycle call out of order: TaskStart called in state started")

	require.NoError(t, b.TaskDone(0, 0, ms(0)))
	assert.ErrorIs(t, b.FixtureStart("F"), ErrOutOfOrder)
	assert.ErrorIs(t, b.TestDone("t", nil, 1, false), ErrOutOfOrder)
	assert.ErrorIs(t, b.TaskDone(0, 0, ms(0)), ErrOutOfOrder)
}

func TestBuilder_RejectedCallsLeaveReportUntouched(t *testing.T) {
	var buf bytes.Buffer
	b := New(&buf)

	assert.Error(t, b.TestDone("early", nil, 1, false))
	require.NoError(t, b.TaskStart(ms(0), []string{"ua"}))
	require.NoError(t, b.TaskDone(0, 0, ms(0)))

	assert.NotContains(t, buf.String(), "early")
	assert.NotContains(t, buf.String(), "<testcase")
}

type brokenWriter struct{}

func (brokenWriter) Write(p []byte) (int, error) {
	return 0, errors.New("pipe closed")
}

func TestBuilder_WriteErrorIsReturned(t *testing.T) {
	b := New(brokenWriter{})

	require.NoError(t, b.TaskStart(ms(0), []string{"ua"}))
	require.NoError(t, b.TestDone("t", nil, 1, false))
	assert.EqualError(t, b.TaskDone(1, 1, ms(1)), "pipe closed")
}
