package transcribe

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
)

type fakeExecutor struct {
	calls [][]string
	run   func(name string, args []string) ([]byte, error)
}

func (f *fakeExecutor) Execute(_ context.Context, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	if f.run == nil {
		return nil, nil
	}
	return f.run(name, args)
}

func argAfter(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

func TestWhisperCLITranscribe(t *testing.T) {
	var wavSeen bool
	exec := &fakeExecutor{run: func(_ string, args []string) ([]byte, error) {
		data, err := os.ReadFile(argAfter(args, "-f"))
		if err != nil {
			return nil, err
		}
		wavSeen = strings.HasPrefix(string(data), "RIFF")
		return []byte(" [BLANK_AUDIO]\n We agreed on the budget.\n\n (music)\n Next week we review it.\n"), nil
	}}

	w := NewWhisperCLI(exec, "", "models/ggml-base.bin", "en")
	w.tmpDir = t.TempDir()

	text, err := w.Transcribe(context.Background(), make([]byte, 3200), 16000)
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if text != "We agreed on the budget. Next week we review it." {
		t.Fatalf("unexpected text %q", text)
	}
	if !wavSeen {
		t.Fatal("expected whisper to receive a wav file")
	}

	call := exec.calls[0]
	if call[0] != "whisper-cli" {
		t.Fatalf("expected default binary, got %q", call[0])
	}
	if argAfter(call[1:], "-m") != "models/ggml-base.bin" || argAfter(call[1:], "-l") != "en" {
		t.Fatalf("unexpected args %v", call)
	}

	entries, _ := os.ReadDir(w.tmpDir)
	if len(entries) != 0 {
		t.Fatalf("expected temp wav to be removed, found %d files", len(entries))
	}
}

func TestWhisperCLIEmptyAudio(t *testing.T) {
	exec := &fakeExecutor{}
	text, err := NewWhisperCLI(exec, "", "m", "").Transcribe(context.Background(), nil, 16000)
	if err != nil || text != "" {
		t.Fatalf("expected empty result, got %q, %v", text, err)
	}
	if len(exec.calls) != 0 {
		t.Fatal("expected whisper not to run for empty audio")
	}
}

func TestWhisperCLIFailure(t *testing.T) {
	exec := &fakeExecutor{run: func(string, []string) ([]byte, error) {
		return nil, errors.New("model not found")
	}}
	w := NewWhisperCLI(exec, "whisper", "m", "en")
	w.tmpDir = t.TempDir()

	_, err := w.Transcribe(context.Background(), make([]byte, 320), 16000)
	if err == nil || !strings.Contains(err.Error(), "model not found") {
		t.Fatalf("expected wrapped whisper error, got %v", err)
	}
}

func TestOpenAITranscribe(t *testing.T) {
	var gotPath, gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		gotModel = r.FormValue("model")
		file, _, err := r.FormFile("file")
		if err == nil {
			data, _ := io.ReadAll(file)
			if !strings.HasPrefix(string(data), "RIFF") {
				t.Errorf("expected wav upload")
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":" Action items were assigned. "}`))
	}))
	defer srv.Close()

	o := NewOpenAI("sk-test", "", "auto", srv.URL+"/v1")
	text, err := o.Transcribe(context.Background(), make([]byte, 3200), 16000)
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if text != "Action items were assigned." {
		t.Fatalf("unexpected text %q", text)
	}
	if gotPath != "/v1/audio/transcriptions" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotModel != "whisper-1" {
		t.Fatalf("expected default model whisper-1, got %q", gotModel)
	}
}

func TestOpenAITranscribeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"message":"bad key"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewOpenAI("sk-bad", "", "en", srv.URL+"/v1").Transcribe(context.Background(), make([]byte, 320), 16000)
	if err == nil {
		t.Fatal("expected error")
	}
}
