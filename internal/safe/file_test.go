package safe

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCopyFile(t *testing.T) {
	t.Run("copies regular file", func(t *testing.T) {
		tmpDir := t.TempDir()
		src := filepath.Join(tmpDir, "agent.jar")
		dst := filepath.Join(tmpDir, "staged.jar")
		content := []byte("PK agent content")

		if err := os.WriteFile(src, content, 0o644); err != nil {
			t.Fatal(err)
		}

		if err := CopyFile(src, dst, nil); err != nil {
			t.Fatalf("CopyFile failed: %v", err)
		}

		got, err := os.ReadFile(dst)
		if err != nil {
			t.Fatal(err)
		}

		if string(got) != string(content) {
			t.Errorf("got %q, want %q", got, content)
		}
	})

	t.Run("rejects symlink by default", func(t *testing.T) {
		tmpDir := t.TempDir()
		src := filepath.Join(tmpDir, "agent.jar")
		link := filepath.Join(tmpDir, "link.jar")
		dst := filepath.Join(tmpDir, "staged.jar")

		if err := os.WriteFile(src, []byte("jar"), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := os.Symlink(src, link); err != nil {
			t.Fatal(err)
		}

		if err := CopyFile(link, dst, nil); err == nil {
			t.Fatal("expected error for symlink, got nil")
		}
	})

	t.Run("allows symlink when enabled", func(t *testing.T) {
		tmpDir := t.TempDir()
		src := filepath.Join(tmpDir, "agent.jar")
		link := filepath.Join(tmpDir, "link.jar")
		dst := filepath.Join(tmpDir, "staged.jar")

		if err := os.WriteFile(src, []byte("jar"), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := os.Symlink(src, link); err != nil {
			t.Fatal(err)
		}

		if err := CopyFile(link, dst, &CopyFileOptions{AllowSymlinks: true}); err != nil {
			t.Fatalf("CopyFile failed: %v", err)
		}
	})

	t.Run("rejects file exceeding max size", func(t *testing.T) {
		tmpDir := t.TempDir()
		src := filepath.Join(tmpDir, "agent.jar")
		dst := filepath.Join(tmpDir, "staged.jar")

		if err := os.WriteFile(src, make([]byte, 1024), 0o644); err != nil {
			t.Fatal(err)
		}

		if err := CopyFile(src, dst, &CopyFileOptions{MaxSize: 512}); err == nil {
			t.Fatal("expected error for oversized file, got nil")
		}
		if _, err := os.Stat(dst); !os.IsNotExist(err) {
			t.Errorf("destination should not exist, stat err = %v", err)
		}
	})

	t.Run("rejects directory", func(t *testing.T) {
		tmpDir := t.TempDir()
		dst := filepath.Join(tmpDir, "staged.jar")

		if err := CopyFile(tmpDir, dst, nil); err == nil {
			t.Fatal("expected error for directory, got nil")
		}
	})

	t.Run("exclusive refuses existing destination", func(t *testing.T) {
		tmpDir := t.TempDir()
		src := filepath.Join(tmpDir, "agent.jar")
		dst := filepath.Join(tmpDir, "staged.jar")

		if err := os.WriteFile(src, []byte("new"), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(dst, []byte("old"), 0o644); err != nil {
			t.Fatal(err)
		}

		if err := CopyFile(src, dst, &CopyFileOptions{Exclusive: true}); err == nil {
			t.Fatal("expected error for existing destination, got nil")
		}

		got, err := os.ReadFile(dst)
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != "old" {
			t.Errorf("existing destination was modified: %q", got)
		}
	})

	t.Run("sets exact destination permissions", func(t *testing.T) {
		tmpDir := t.TempDir()
		src := filepath.Join(tmpDir, "agent.jar")
		dst := filepath.Join(tmpDir, "staged.jar")

		if err := os.WriteFile(src, []byte("jar"), 0o644); err != nil {
			t.Fatal(err)
		}

		if err := CopyFile(src, dst, &CopyFileOptions{DestPerm: 0o444}); err != nil {
			t.Fatal(err)
		}

		info, err := os.Stat(dst)
		if err != nil {
			t.Fatal(err)
		}
		if perm := info.Mode().Perm(); perm != 0o444 {
			t.Errorf("got permissions %o, want %o", perm, 0o444)
		}
	})
}

func TestRegularFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "agent.jar")
	if err := os.WriteFile(path, []byte("jar"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := RegularFile(path); err != nil {
		t.Errorf("RegularFile(%q) = %v", path, err)
	}
	if _, err := RegularFile(tmpDir); err == nil {
		t.Error("expected error for directory")
	}
	if _, err := RegularFile(filepath.Join(tmpDir, "missing.jar")); !os.IsNotExist(err) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}
