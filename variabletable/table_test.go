package variabletable

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/nomasters/shelf/file"
	"github.com/nomasters/shelf/logger"
)

// recordingLogger implements logger.Logger and keeps every Debugf/Infof
// line it receives, mirroring fixedtable's test double so both packages'
// logging wiring is checked the same way.
type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordingLogger) record(format string, v ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf(format, v...))
}

func (l *recordingLogger) has(substr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, line := range l.lines {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}

func (l *recordingLogger) Panicln(v ...any)               {}
func (l *recordingLogger) Panicf(format string, v ...any) { l.record(format, v...) }
func (l *recordingLogger) Fatalln(v ...any)               {}
func (l *recordingLogger) Fatalf(format string, v ...any) { l.record(format, v...) }
func (l *recordingLogger) Errorln(v ...any)               {}
func (l *recordingLogger) Errorf(format string, v ...any) { l.record(format, v...) }
func (l *recordingLogger) Warnln(v ...any)                {}
func (l *recordingLogger) Warnf(format string, v ...any)  { l.record(format, v...) }
func (l *recordingLogger) Infoln(v ...any)                {}
func (l *recordingLogger) Infof(format string, v ...any)  { l.record(format, v...) }
func (l *recordingLogger) Debugln(v ...any)               {}
func (l *recordingLogger) Debugf(format string, v ...any) { l.record(format, v...) }
func (l *recordingLogger) Traceln(v ...any)               {}
func (l *recordingLogger) Tracef(format string, v ...any) { l.record(format, v...) }

var _ logger.Logger = (*recordingLogger)(nil)

func TestPushAndReadBack(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "records.shelf")

	tbl, err := Create(path, 4, 64)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer tbl.Close()

	records := [][]byte{
		[]byte("a"),
		[]byte("hello, shelf"),
		[]byte(""),
		[]byte("the quick brown fox jumps over the lazy dog"),
	}
	for i, r := range records {
		id, err := tbl.Push(r)
		if err != nil {
			t.Fatalf("Push(%d): %v", i, err)
		}
		if id != uint64(i) {
			t.Fatalf("Push(%d) returned id %d, want %d", i, id, i)
		}
	}

	recordCount, _ := tbl.Size()
	if recordCount != uint64(len(records)) {
		t.Fatalf("Size() records = %d, want %d", recordCount, len(records))
	}
	for i, want := range records {
		got, ok := tbl.At(uint64(i))
		if !ok {
			t.Fatalf("At(%d): not published", i)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("At(%d) = %q, want %q", i, got, want)
		}
	}
	if tbl.HasValue(uint64(len(records))) {
		t.Fatal("HasValue beyond size = true, want false")
	}
}

func TestShrinkToFitAndReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "records.shelf")

	tbl, err := Create(path, 2, 8)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	payload := bytes.Repeat([]byte("x"), 200)
	if _, err := tbl.Push(payload); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if err := tbl.ShrinkToFit(); err != nil {
		t.Fatalf("ShrinkToFit: %v", err)
	}
	tbl.Close()

	reopened, err := Open(path, file.ReadOnly)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	got, ok := reopened.At(0)
	if !ok || !bytes.Equal(got, payload) {
		t.Fatalf("reopened At(0) mismatch: ok=%v len=%d", ok, len(got))
	}
}

func TestConcurrentPushAcrossSizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "records.shelf")

	tbl, err := Create(path, 4, 16)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer tbl.Close()

	const n = 200
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			data := []byte(fmt.Sprintf("record-%04d", i))
			if _, err := tbl.Push(data); err != nil {
				t.Errorf("Push(%d): %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	recordCount, _ := tbl.Size()
	if recordCount != n {
		t.Fatalf("Size() records = %d, want %d", recordCount, n)
	}
	seen := make(map[string]bool)
	for i := uint64(0); i < n; i++ {
		got, ok := tbl.At(i)
		if !ok {
			t.Fatalf("At(%d): not published", i)
		}
		seen[string(got)] = true
	}
	if len(seen) != n {
		t.Fatalf("saw %d distinct records, want %d", len(seen), n)
	}
}

func TestWaitBlocksUntilPublished(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "records.shelf")

	tbl, err := Create(path, 2, 8)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer tbl.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		got, err := tbl.Wait(0)
		if err != nil || string(got) != "payload" {
			t.Errorf("Wait(0) = (%q, %v), want (\"payload\", nil)", got, err)
		}
	}()

	if _, err := tbl.Push([]byte("payload")); err != nil {
		t.Fatalf("Push: %v", err)
	}
	<-done
}

func TestDefaultsToNoOpLogger(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "records.shelf")
	tbl, err := Create(path, 2, 4)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer tbl.Close()
	if tbl.log == nil {
		t.Fatal("Table.log is nil, want logger.NewNoOp() default")
	}
}

func TestLogsHeapGrowthAndShrinkEvents(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "records.shelf")
	rec := &recordingLogger{}
	tbl, err := Create(path, 2, 4, rec)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer tbl.Close()

	if _, err := tbl.Push(bytes.Repeat([]byte("x"), 10)); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if !rec.has("growing heap") {
		t.Fatalf("expected a heap growth log line, got %v", rec.lines)
	}

	if err := tbl.ShrinkToFit(); err != nil {
		t.Fatalf("ShrinkToFit: %v", err)
	}
	if !rec.has("shrank heap") {
		t.Fatalf("expected a heap shrink log line, got %v", rec.lines)
	}
}
