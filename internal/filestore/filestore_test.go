package filestore_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"haul/internal/database"
	"haul/internal/filestore"
	"haul/internal/testsupport"
)

func newClient(t *testing.T) (*filestore.Client, *database.Backend) {
	t.Helper()
	backend := testsupport.MustOpenBackend(t, testsupport.NewConfig(t))
	if err := backend.RegisterExtension(filestore.Extension{}); err != nil {
		t.Fatalf("RegisterExtension: %v", err)
	}
	return filestore.NewClient(backend), backend
}

func TestAddPackageNormalizesName(t *testing.T) {
	client, _ := newClient(t)
	ctx := context.Background()

	// "e" followed by a combining acute accent composes to U+00E9.
	id, err := client.AddPackage(ctx, filestore.NewPackage{Name: "  Cafe\u0301 Mix  ", Site: "example.org", Password: "pw"})
	if err != nil {
		t.Fatalf("AddPackage: %v", err)
	}
	pkg, err := client.Package(ctx, id)
	if err != nil {
		t.Fatalf("Package: %v", err)
	}
	if pkg.Name != "Caf\u00e9 Mix" {
		t.Fatalf("name = %q", pkg.Name)
	}
	if pkg.Folder != pkg.Name {
		t.Fatalf("folder should default to name, got %q", pkg.Folder)
	}
	if pkg.Site != "example.org" || pkg.Queue != filestore.QueueCollector {
		t.Fatalf("package = %+v", pkg)
	}
}

func TestPackagesAreOrderedPerQueue(t *testing.T) {
	client, _ := newClient(t)
	ctx := context.Background()

	for _, p := range []filestore.NewPackage{
		{Name: "one", Queue: filestore.QueueActive},
		{Name: "collected"},
		{Name: "two", Queue: filestore.QueueActive},
	} {
		if _, err := client.AddPackage(ctx, p); err != nil {
			t.Fatalf("AddPackage %s: %v", p.Name, err)
		}
	}

	active, err := client.Packages(ctx, filestore.QueueActive)
	if err != nil {
		t.Fatalf("Packages: %v", err)
	}
	if len(active) != 2 || active[0].Name != "one" || active[1].Name != "two" {
		t.Fatalf("active = %+v", active)
	}
	if active[0].Order != 0 || active[1].Order != 1 {
		t.Fatalf("orders = %d, %d", active[0].Order, active[1].Order)
	}
	if n, err := client.PackageCount(ctx); err != nil || n != 3 {
		t.Fatalf("PackageCount = %d, %v", n, err)
	}
}

func TestLinksLifecycle(t *testing.T) {
	client, backend := newClient(t)
	ctx := context.Background()

	pkgID, err := client.AddPackage(ctx, filestore.NewPackage{Name: "pkg"})
	if err != nil {
		t.Fatalf("AddPackage: %v", err)
	}
	ids, err := client.AddLinks(ctx, pkgID, "http://host/a%20file.bin", " ", "http://host/b.bin", "http://host/c.bin")
	if err != nil {
		t.Fatalf("AddLinks: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("ids = %v", ids)
	}

	if err := client.SetLinkStatus(ids[0], filestore.StatusFailed, "timeout"); err != nil {
		t.Fatalf("SetLinkStatus: %v", err)
	}
	if ok, err := client.UpdateLinkStatus(ctx, ids[1], filestore.StatusFinished, ""); err != nil || !ok {
		t.Fatalf("UpdateLinkStatus = %v, %v", ok, err)
	}
	if err := client.SetLinkStatus(ids[2], filestore.StatusTempOffline, "503"); err != nil {
		t.Fatalf("SetLinkStatus: %v", err)
	}

	restarted, err := client.RestartFailed(ctx)
	if err != nil {
		t.Fatalf("RestartFailed: %v", err)
	}
	if restarted != 2 {
		t.Fatalf("restarted = %d, want 2", restarted)
	}

	links, err := client.Links(ctx, pkgID)
	if err != nil {
		t.Fatalf("Links: %v", err)
	}
	want := []struct {
		name   string
		status filestore.LinkStatus
	}{
		{"a file.bin", filestore.StatusQueued},
		{"b.bin", filestore.StatusFinished},
		{"c.bin", filestore.StatusQueued},
	}
	for i, w := range want {
		if links[i].Name != w.name || links[i].Status != w.status || links[i].Error != "" {
			t.Fatalf("link %d = %+v, want %s/%s", i, links[i], w.name, w.status)
		}
		if links[i].Plugin != "BasePlugin" {
			t.Fatalf("plugin default = %q", links[i].Plugin)
		}
	}

	if ok, err := client.DeletePackage(ctx, pkgID); err != nil || !ok {
		t.Fatalf("DeletePackage = %v, %v", ok, err)
	}
	health, err := backend.CheckHealth(ctx)
	if err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	if health.RowCounts["links"] != 0 || health.RowCounts["packages"] != 0 {
		t.Fatalf("row counts after delete = %v", health.RowCounts)
	}
}

func TestAddLinksToMissingPackageRollsBack(t *testing.T) {
	client, _ := newClient(t)
	_, err := client.AddLinks(context.Background(), 99, "http://host/x")
	if !errors.Is(err, filestore.ErrPackageNotFound) {
		t.Fatalf("AddLinks = %v, want ErrPackageNotFound", err)
	}
	if _, err := client.Package(context.Background(), 99); !errors.Is(err, filestore.ErrPackageNotFound) {
		t.Fatalf("Package = %v, want ErrPackageNotFound", err)
	}
}

func TestUpdateLinkStatusRejectsUnknownStatus(t *testing.T) {
	client, _ := newClient(t)
	_, err := client.UpdateLinkStatus(context.Background(), 1, filestore.LinkStatus(99), "")
	if !errors.Is(err, database.ErrBadArgument) {
		t.Fatalf("UpdateLinkStatus = %v, want ErrBadArgument", err)
	}
}

func TestLinkStatusString(t *testing.T) {
	if got := filestore.StatusTempOffline.String(); got != "temp_offline" {
		t.Fatalf("String = %q", got)
	}
	if got := filestore.LinkStatus(42).String(); got != "status(42)" {
		t.Fatalf("String = %q", got)
	}
}

func TestAsyncStatusForMissingLinkIsLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	backend := testsupport.MustOpenBackend(t, testsupport.NewConfig(t), database.WithLogger(logger))
	if err := backend.RegisterExtension(filestore.Extension{}); err != nil {
		t.Fatalf("RegisterExtension: %v", err)
	}
	client := filestore.NewClient(backend)

	if err := client.SetLinkStatus(999, filestore.StatusFinished, ""); err != nil {
		t.Fatalf("SetLinkStatus: %v", err)
	}
	if err := backend.Sync(context.Background()); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	out := buf.String()
	for _, want := range []string{`"msg":"link status update matched no link"`, `"link_id":999`, `"job_id":"`, `"component":"database"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("log missing %s:\n%s", want, out)
		}
	}
	if stats := backend.Stats(); stats.Failed != 0 {
		t.Fatalf("stats = %+v", stats)
	}
}
