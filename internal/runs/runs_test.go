package runs

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func mkdirs(t *testing.T, root string, names ...string) {
	t.Helper()
	for _, name := range names {
		if err := os.MkdirAll(filepath.Join(root, name), 0755); err != nil {
			t.Fatalf("failed to create %s: %v", name, err)
		}
	}
}

func touch(t *testing.T, root string, names ...string) {
	t.Helper()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(root, name), nil, 0644); err != nil {
			t.Fatalf("failed to create %s: %v", name, err)
		}
	}
}

func TestScan(t *testing.T) {
	tests := []struct {
		name  string
		dirs  []string
		files []string
		want  int
	}{
		{"empty root", nil, nil, 0},
		{"gap in sequence", []string{"model_1", "model_3"}, nil, 3},
		{"files count too", []string{"model_2"}, []string{"model_7"}, 7},
		{"foreign names ignored", []string{"model_x", "model_", "other_9", "model_2_old", "model5"}, nil, 0},
		{"multi digit", []string{"model_9", "model_10"}, nil, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			mkdirs(t, root, tt.dirs...)
			touch(t, root, tt.files...)

			got, err := Scan(root, "model")
			if err != nil {
				t.Fatalf("Scan failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Scan: got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestScan_MissingRoot(t *testing.T) {
	got, err := Scan(filepath.Join(t.TempDir(), "absent"), "model")
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if got != 0 {
		t.Errorf("Scan: got %d, want 0", got)
	}
}

func TestCreate_AfterGap(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "model_1", "model_3")

	dir, n, err := Create(root, "model")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if n != 4 {
		t.Errorf("number: got %d, want 4", n)
	}
	if dir != filepath.Join(root, "model_4") {
		t.Errorf("dir: got %s", dir)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("run folder was not created: %v", err)
	}
}

func TestCreate_FirstRun(t *testing.T) {
	root := filepath.Join(t.TempDir(), "output_image")

	_, n, err := Create(root, "model")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if n != 1 {
		t.Errorf("number: got %d, want 1", n)
	}
}

func TestCreate_Concurrent(t *testing.T) {
	root := t.TempDir()
	const workers = 8

	var wg sync.WaitGroup
	numbers := make(chan int, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, n, err := Create(root, "model")
			if err != nil {
				t.Errorf("Create failed: %v", err)
				return
			}
			numbers <- n
		}()
	}
	wg.Wait()
	close(numbers)

	seen := make(map[int]bool)
	for n := range numbers {
		if seen[n] {
			t.Errorf("run number %d handed out twice", n)
		}
		seen[n] = true
	}
	if len(seen) != workers {
		t.Errorf("got %d distinct runs, want %d", len(seen), workers)
	}
}

func TestLatest(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "model_2", "model_12", "model_9")
	touch(t, root, "model_99")

	dir, n, err := Latest(root, "model")
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if n != 12 || dir != filepath.Join(root, "model_12") {
		t.Errorf("Latest: got %s (%d), want model_12", dir, n)
	}
}

func TestLatest_NoRuns(t *testing.T) {
	_, _, err := Latest(t.TempDir(), "model")
	if !errors.Is(err, ErrNoRuns) {
		t.Errorf("err: got %v, want ErrNoRuns", err)
	}
}

func TestClaimFile(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "collage_result_1.jpg", "collage_result_2.jpg")

	f, path, err := ClaimFile(dir, "collage_result_%d.jpg")
	if err != nil {
		t.Fatalf("ClaimFile failed: %v", err)
	}
	defer f.Close()

	if path != filepath.Join(dir, "collage_result_3.jpg") {
		t.Errorf("path: got %s, want collage_result_3.jpg", path)
	}
}

func TestClaimFile_FillsFirstHole(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "collage_result_2.jpg")

	f, path, err := ClaimFile(dir, "collage_result_%d.jpg")
	if err != nil {
		t.Fatalf("ClaimFile failed: %v", err)
	}
	defer f.Close()

	if filepath.Base(path) != "collage_result_1.jpg" {
		t.Errorf("path: got %s, want collage_result_1.jpg", filepath.Base(path))
	}
}
