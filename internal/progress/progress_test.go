package progress

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

func TestWriter_RoundTrip(t *testing.T) {
	rec := httptest.NewRecorder()
	SetHeaders(rec.Header())
	w := NewWriter(rec)

	sent := []Frame{
		{Stage: StageInitializing, Message: "Starting"},
		{Stage: StageCommitting, Current: 100, Total: 250, Percentage: 44, Message: "Committed batch 1 of 3"},
		Final(true, Stats{Created: 248, Skipped: 2}, "done", nil),
	}
	for _, f := range sent {
		require.NoError(t, w.Emit(f))
	}
	require.NoError(t, w.Close())
	require.Error(t, w.Emit(sent[0]))

	require.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	require.True(t, rec.Flushed)
	body := rec.Body.String()
	require.True(t, strings.HasPrefix(body, "data:{"))
	require.True(t, strings.HasSuffix(body, "data:[DONE]\n\n"))

	log, _ := test.NewNullLogger()
	r := NewReader(strings.NewReader(body), log)
	var got []Frame
	for f, err := range r.Frames() {
		require.NoError(t, err)
		got = append(got, f)
	}
	require.Equal(t, sent, got)

	_, err := r.Next()
	require.ErrorIs(t, err, io.EOF)
}

func TestReader_SkipsMalformedFrames(t *testing.T) {
	stream := strings.Join([]string{
		`: keep-alive`,
		`data:{"stage":"parsing","percentage":5}`,
		``,
		`data:{"stage":`,
		``,
		`event: noise`,
		`data:{"stage":"validating","percentage":10}`,
		``,
		`data:[DONE]`,
		``,
	}, "\n")

	log, hook := test.NewNullLogger()
	r := NewReader(strings.NewReader(stream), log)

	f, err := r.Next()
	require.NoError(t, err)
	require.Equal(t, StageParsing, f.Stage)

	f, err = r.Next()
	require.NoError(t, err)
	require.Equal(t, StageValidating, f.Stage)

	_, err = r.Next()
	require.ErrorIs(t, err, io.EOF)
	require.Len(t, hook.AllEntries(), 2)
}

func TestReader_TruncatedStream(t *testing.T) {
	r := NewReader(strings.NewReader("data:{\"stage\":\"committing\",\"current\":10}\n\n"), nil)

	var errs []error
	var frames int
	for _, err := range r.Frames() {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		frames++
	}
	require.Equal(t, 1, frames)
	require.Len(t, errs, 1)
	require.ErrorIs(t, errs[0], io.ErrUnexpectedEOF)
}

func TestApply(t *testing.T) {
	committing := Frame{Stage: StageCommitting, Current: 200, Percentage: 78}
	final := Final(true, Stats{Created: 3}, "done", nil)

	cases := []struct {
		name    string
		current Frame
		next    Frame
		want    Frame
	}{
		{"later stage wins", Frame{Stage: StageParsing}, committing, committing},
		{"earlier stage ignored", committing, Frame{Stage: StageValidating}, committing},
		{"stale same-stage frame ignored", committing, Frame{Stage: StageCommitting, Current: 100}, committing},
		{"final always wins", committing, final, final},
		{"final is sticky", final, Frame{Stage: StageCommitting, Current: 500}, final},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Apply(tc.current, tc.next))
		})
	}
}

func TestFinal(t *testing.T) {
	f := Final(false, Stats{}, "Import failed", []string{"bad header"})
	require.True(t, f.IsFinal())
	require.False(t, f.Succeeded())
	require.Equal(t, StageFailed, f.Stage)
	require.EqualValues(t, 100, f.Percentage)
}
