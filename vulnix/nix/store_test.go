package nix

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/flyingcircus/vulnix/vulnix/derivation"
)

func newTestStore(fs afero.Fs, requisites bool) *Store {
	return &Store{
		requisites:  requisites,
		fs:          fs,
		gcRootsDir:  DefaultGCRootsDir,
		dbPath:      "/nonexistent/db.sqlite",
		derivations: make(map[string]derivation.Derivation),
	}
}

func drvFixture(name, out string, inputs ...string) string {
	var b strings.Builder
	b.WriteString(`Derive([("out","` + out + `","","")],[`)
	for i, input := range inputs {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(`("` + input + `",["out"])`)
	}
	b.WriteString(`],[],"x86_64-linux","/bin/sh",[],[("name","` + name + `"),("out","` + out + `")])`)
	return b.String()
}

func writeDrv(t *testing.T, fs afero.Fs, path, contents string) {
	t.Helper()
	if err := afero.WriteFile(fs, path, []byte(contents), 0444); err != nil {
		t.Fatalf("unable to write fixture: %+v", err)
	}
}

func TestAddPathExpandsClosure(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeDrv(t, fs, "/nix/store/ccc-glibc-2.33.drv", drvFixture("glibc-2.33", "/nix/store/out-glibc"))
	writeDrv(t, fs, "/nix/store/bbb-openssl-1.0.1a.drv", drvFixture("openssl-1.0.1a", "/nix/store/out-openssl",
		"/nix/store/ccc-glibc-2.33.drv"))
	writeDrv(t, fs, "/nix/store/aaa-app-1.0.drv", drvFixture("app-1.0", "/nix/store/out-app",
		"/nix/store/bbb-openssl-1.0.1a.drv"))

	s := newTestStore(fs, true)
	if err := s.AddPath("/nix/store/aaa-app-1.0.drv"); err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}

	if s.Count() != 3 {
		t.Fatalf("expected 3 derivations, got %d", s.Count())
	}

	names := make(map[string]bool)
	for _, d := range s.Derivations() {
		names[d.Name] = true
	}
	for _, expected := range []string{"app-1.0", "openssl-1.0.1a", "glibc-2.33"} {
		if !names[expected] {
			t.Errorf("missing %q in closure", expected)
		}
	}
}

func TestAddPathWithoutRequisites(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeDrv(t, fs, "/nix/store/ccc-glibc-2.33.drv", drvFixture("glibc-2.33", "/nix/store/out-glibc"))
	writeDrv(t, fs, "/nix/store/aaa-app-1.0.drv", drvFixture("app-1.0", "/nix/store/out-app",
		"/nix/store/ccc-glibc-2.33.drv"))

	s := newTestStore(fs, false)
	if err := s.AddPath("/nix/store/aaa-app-1.0.drv"); err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}
	if s.Count() != 1 {
		t.Fatalf("expected just the root, got %d derivations", s.Count())
	}
	if s.Derivations()[0].Name != "app-1.0" {
		t.Errorf("unexpected root: %q", s.Derivations()[0].Name)
	}
}

func TestAddPathToleratesCycles(t *testing.T) {
	fs := afero.NewMemMapFs()
	// a reference cycle and a self reference must not loop the traversal
	writeDrv(t, fs, "/nix/store/aaa-ping-1.0.drv", drvFixture("ping-1.0", "/nix/store/out-ping",
		"/nix/store/bbb-pong-1.0.drv"))
	writeDrv(t, fs, "/nix/store/bbb-pong-1.0.drv", drvFixture("pong-1.0", "/nix/store/out-pong",
		"/nix/store/aaa-ping-1.0.drv", "/nix/store/bbb-pong-1.0.drv"))

	s := newTestStore(fs, true)
	if err := s.AddPath("/nix/store/aaa-ping-1.0.drv"); err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}
	if s.Count() != 2 {
		t.Fatalf("expected 2 derivations, got %d", s.Count())
	}
}

func TestAddPathDeduplicatesAcrossRoots(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeDrv(t, fs, "/nix/store/ccc-glibc-2.33.drv", drvFixture("glibc-2.33", "/nix/store/out-glibc"))
	writeDrv(t, fs, "/nix/store/aaa-app-1.0.drv", drvFixture("app-1.0", "/nix/store/out-app",
		"/nix/store/ccc-glibc-2.33.drv"))
	writeDrv(t, fs, "/nix/store/bbb-tool-2.0.drv", drvFixture("tool-2.0", "/nix/store/out-tool",
		"/nix/store/ccc-glibc-2.33.drv"))

	s := newTestStore(fs, true)
	for _, root := range []string{"/nix/store/aaa-app-1.0.drv", "/nix/store/bbb-tool-2.0.drv"} {
		if err := s.AddPath(root); err != nil {
			t.Fatalf("unexpected error: %+v", err)
		}
	}
	if s.Count() != 3 {
		t.Fatalf("expected 3 unique derivations, got %d", s.Count())
	}
}

func TestAddPathNotFound(t *testing.T) {
	s := newTestStore(afero.NewMemMapFs(), true)
	err := s.AddPath("/nix/store/does-not-exist.drv")
	if err == nil {
		t.Fatal("expected an error")
	}
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected a NotFoundError, got %T: %+v", err, err)
	}
	if notFound.Path != "/nix/store/does-not-exist.drv" {
		t.Errorf("unexpected path in error: %q", notFound.Path)
	}
}

func TestAddPathBrokenRootFails(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeDrv(t, fs, "/nix/store/aaa-broken-1.0.drv", "not a derivation at all")

	s := newTestStore(fs, true)
	if err := s.AddPath("/nix/store/aaa-broken-1.0.drv"); err == nil {
		t.Fatal("expected an error for an unparseable root")
	}
}

func TestAddPathSkipsUnreadableDependency(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeDrv(t, fs, "/nix/store/aaa-app-1.0.drv", drvFixture("app-1.0", "/nix/store/out-app",
		"/nix/store/gone-lib-0.1.drv"))

	s := newTestStore(fs, true)
	if err := s.AddPath("/nix/store/aaa-app-1.0.drv"); err != nil {
		t.Fatalf("a missing dependency must not fail the root: %+v", err)
	}
	if s.Count() != 1 {
		t.Fatalf("expected 1 derivation, got %d", s.Count())
	}
}

func TestAddPathPlainStorePath(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/nix/store/zzz-zlib-1.2.11", []byte("elf..."), 0444); err != nil {
		t.Fatalf("unable to write fixture: %+v", err)
	}

	// no store database available, the path is still examined on its own
	s := newTestStore(fs, true)
	if err := s.AddPath("/nix/store/zzz-zlib-1.2.11"); err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}
	if s.Count() != 1 {
		t.Fatalf("expected 1 derivation, got %d", s.Count())
	}
	d := s.Derivations()[0]
	if d.Name != "zlib-1.2.11" || d.Pname != "zlib" || d.Version != "1.2.11" {
		t.Errorf("unexpected derivation: %+v", d)
	}
}

func TestAddPathWalksReferencesWithoutRecipe(t *testing.T) {
	fs := afero.NewMemMapFs()
	for _, p := range []string{"/nix/store/aaa-app-1.0", "/nix/store/bbb-openssl-1.0.1a", "/nix/store/ccc-glibc-2.33"} {
		if err := afero.WriteFile(fs, p, []byte("elf..."), 0444); err != nil {
			t.Fatalf("unable to write fixture: %+v", err)
		}
	}

	// substituted paths have no recipe, only the reference graph (with a back edge here)
	s := newTestStore(fs, true)
	s.dbLoaded = true
	s.db = &DB{
		references: map[string][]string{
			"/nix/store/aaa-app-1.0":        {"/nix/store/bbb-openssl-1.0.1a"},
			"/nix/store/bbb-openssl-1.0.1a": {"/nix/store/ccc-glibc-2.33", "/nix/store/aaa-app-1.0"},
		},
	}

	if err := s.AddPath("/nix/store/aaa-app-1.0"); err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}
	if s.Count() != 3 {
		t.Fatalf("expected the runtime closure, got %d derivations", s.Count())
	}

	names := make(map[string]bool)
	for _, d := range s.Derivations() {
		names[d.Name] = true
	}
	for _, expected := range []string{"app-1.0", "openssl-1.0.1a", "glibc-2.33"} {
		if !names[expected] {
			t.Errorf("missing %q in runtime closure", expected)
		}
	}
}

func TestAddPathReferencesWithoutRequisites(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/nix/store/aaa-app-1.0", []byte("elf..."), 0444); err != nil {
		t.Fatalf("unable to write fixture: %+v", err)
	}

	s := newTestStore(fs, false)
	s.dbLoaded = true
	s.db = &DB{
		references: map[string][]string{
			"/nix/store/aaa-app-1.0": {"/nix/store/bbb-openssl-1.0.1a"},
		},
	}

	if err := s.AddPath("/nix/store/aaa-app-1.0"); err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}
	if s.Count() != 1 {
		t.Fatalf("expected just the root, got %d derivations", s.Count())
	}
}

func TestAddPathFollowsResultLink(t *testing.T) {
	dir := t.TempDir()
	storeDir := filepath.Join(dir, "store")
	if err := os.MkdirAll(storeDir, 0755); err != nil {
		t.Fatalf("unable to create store dir: %+v", err)
	}

	drvPath := filepath.Join(storeDir, "aaa-app-1.0.drv")
	if err := os.WriteFile(drvPath, []byte(drvFixture("app-1.0", "/nix/store/out-app")), 0444); err != nil {
		t.Fatalf("unable to write fixture: %+v", err)
	}

	// nix-build style indirection: result -> intermediate -> .drv
	intermediate := filepath.Join(dir, "intermediate")
	if err := os.Symlink(drvPath, intermediate); err != nil {
		t.Fatalf("unable to create symlink: %+v", err)
	}
	result := filepath.Join(dir, "result")
	if err := os.Symlink("intermediate", result); err != nil {
		t.Fatalf("unable to create symlink: %+v", err)
	}

	s := newTestStore(afero.NewOsFs(), true)
	if err := s.AddPath(result); err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}
	if s.Count() != 1 {
		t.Fatalf("expected 1 derivation, got %d", s.Count())
	}
	if s.Derivations()[0].Location != drvPath {
		t.Errorf("expected the link target as location, got %q", s.Derivations()[0].Location)
	}
}

func TestAddPathDanglingLink(t *testing.T) {
	dir := t.TempDir()
	dangling := filepath.Join(dir, "result")
	if err := os.Symlink(filepath.Join(dir, "gone"), dangling); err != nil {
		t.Fatalf("unable to create symlink: %+v", err)
	}

	s := newTestStore(afero.NewOsFs(), true)
	err := s.AddPath(dangling)
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected a NotFoundError, got %T: %+v", err, err)
	}
}

func TestAddGCRoots(t *testing.T) {
	dir := t.TempDir()
	storeDir := filepath.Join(dir, "store")
	gcRootsDir := filepath.Join(dir, "gcroots")
	for _, d := range []string{storeDir, filepath.Join(gcRootsDir, "auto"), filepath.Join(gcRootsDir, "manifests")} {
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Fatalf("unable to create dir: %+v", err)
		}
	}

	appDrv := filepath.Join(storeDir, "aaa-app-1.0.drv")
	if err := os.WriteFile(appDrv, []byte(drvFixture("app-1.0", "/nix/store/out-app")), 0444); err != nil {
		t.Fatalf("unable to write fixture: %+v", err)
	}
	toolDrv := filepath.Join(storeDir, "bbb-tool-2.0.drv")
	if err := os.WriteFile(toolDrv, []byte(drvFixture("tool-2.0", "/nix/store/out-tool")), 0444); err != nil {
		t.Fatalf("unable to write fixture: %+v", err)
	}

	links := map[string]string{
		filepath.Join(gcRootsDir, "current-system"):    appDrv,
		filepath.Join(gcRootsDir, "auto", "result"):    toolDrv,
		filepath.Join(gcRootsDir, "auto", "dangling"):  filepath.Join(storeDir, "gone"),
		filepath.Join(gcRootsDir, "manifests", "skip"): appDrv,
	}
	for link, target := range links {
		if err := os.Symlink(target, link); err != nil {
			t.Fatalf("unable to create symlink: %+v", err)
		}
	}

	s := newTestStore(afero.NewOsFs(), true)
	s.gcRootsDir = gcRootsDir
	if err := s.AddGCRoots(); err != nil {
		t.Fatalf("dangling roots must not fail the walk: %+v", err)
	}

	if s.Count() != 2 {
		t.Fatalf("expected 2 derivations (dangling and manifests skipped), got %d", s.Count())
	}
}

func TestAddGCRootsMissingFarm(t *testing.T) {
	s := newTestStore(afero.NewMemMapFs(), true)
	s.gcRootsDir = "/nix/var/nix/gcroots"
	var notFound *NotFoundError
	if err := s.AddGCRoots(); !errors.As(err, &notFound) {
		t.Fatalf("expected a NotFoundError, got %+v", err)
	}
}
