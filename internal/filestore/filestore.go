package filestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"golang.org/x/text/unicode/norm"

	"haul/internal/database"
	"haul/internal/logging"
)

// Operation names exposed by the extension.
const (
	OpAddPackage       = "add_package"
	OpGetPackage       = "get_package"
	OpListPackages     = "list_packages"
	OpDeletePackage    = "delete_package"
	OpAddLinks         = "add_links"
	OpGetLinks         = "get_links"
	OpUpdateLinkStatus = "update_link_status"
	OpRestartFailed    = "restart_failed"
	OpPackageCount     = "package_count"
)

// ErrPackageNotFound is returned for an unknown package id.
var ErrPackageNotFound = errors.New("package not found")

// Package is a stored package row.
type Package struct {
	ID       int64
	Name     string
	Folder   string
	Site     string
	Queue    Queue
	Order    int
	Priority int
}

// Link is a stored link row.
type Link struct {
	ID        int64
	URL       string
	Name      string
	Size      int64
	Status    LinkStatus
	Plugin    string
	Error     string
	Order     int
	PackageID int64
}

// Extension implements database.Extension.
type Extension struct{}

func (Extension) Name() string { return "filestore" }

func (Extension) Operations() map[string]database.Operation {
	return map[string]database.Operation{
		OpAddPackage:       addPackage,
		OpGetPackage:       getPackage,
		OpListPackages:     listPackages,
		OpDeletePackage:    deletePackage,
		OpAddLinks:         addLinks,
		OpGetLinks:         getLinks,
		OpUpdateLinkStatus: updateLinkStatus,
		OpRestartFailed:    restartFailed,
		OpPackageCount:     packageCount,
	}
}

// CleanName trims and NFC-normalises a package or link name.
func CleanName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// nameFromURL derives a link name from the last path segment of raw.
func nameFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" || u.Path == "/" {
		return CleanName(raw)
	}
	base := path.Base(u.Path)
	if unescaped, err := url.PathUnescape(base); err == nil {
		base = unescaped
	}
	return CleanName(base)
}

func addPackage(ctx context.Context, tx *database.Tx, args database.Args) (any, error) {
	name, err := database.Arg[string](args, 0)
	if err != nil {
		return nil, err
	}
	name = CleanName(name)
	if name == "" {
		return nil, fmt.Errorf("%w: package name is empty", database.ErrBadArgument)
	}
	folder, err := database.OptionalArg(args, 1, name)
	if err != nil {
		return nil, err
	}
	site, err := database.NamedArg(args, "site", "")
	if err != nil {
		return nil, err
	}
	password, err := database.NamedArg(args, "password", database.Secret(""))
	if err != nil {
		return nil, err
	}
	queue, err := database.NamedArg(args, "queue", QueueCollector)
	if err != nil {
		return nil, err
	}

	cur := tx.CreateCursor()
	var order int
	if err := cur.QueryRow(ctx,
		"SELECT COALESCE(MAX(packageorder) + 1, 0) FROM packages WHERE queue = ?", int(queue)).Scan(&order); err != nil {
		return nil, fmt.Errorf("next package order: %w", err)
	}
	if _, err := cur.Exec(ctx,
		"INSERT INTO packages (name, folder, site, password, queue, packageorder) VALUES (?, ?, ?, ?, ?, ?)",
		name, CleanName(folder), site, string(password), int(queue), order); err != nil {
		return nil, fmt.Errorf("insert package: %w", err)
	}
	return cur.LastInsertID(), nil
}

const packageColumns = "id, name, COALESCE(folder, ''), COALESCE(site, ''), queue, packageorder, priority"

func scanPackage(scan func(...any) error) (Package, error) {
	var (
		p     Package
		queue int
	)
	if err := scan(&p.ID, &p.Name, &p.Folder, &p.Site, &queue, &p.Order, &p.Priority); err != nil {
		return Package{}, err
	}
	p.Queue = Queue(queue)
	return p, nil
}

func getPackage(ctx context.Context, tx *database.Tx, args database.Args) (any, error) {
	id, err := database.Arg[int64](args, 0)
	if err != nil {
		return nil, err
	}
	pkg, err := scanPackage(tx.CreateCursor().QueryRow(ctx,
		"SELECT "+packageColumns+" FROM packages WHERE id = ?", id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrPackageNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get package: %w", err)
	}
	return pkg, nil
}

func listPackages(ctx context.Context, tx *database.Tx, args database.Args) (any, error) {
	queue, err := database.Arg[Queue](args, 0)
	if err != nil {
		return nil, err
	}
	rows, err := tx.CreateCursor().Query(ctx,
		"SELECT "+packageColumns+" FROM packages WHERE queue = ? ORDER BY packageorder, id", int(queue))
	if err != nil {
		return nil, fmt.Errorf("list packages: %w", err)
	}
	defer rows.Close()

	var packages []Package
	for rows.Next() {
		pkg, err := scanPackage(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan package: %w", err)
		}
		packages = append(packages, pkg)
	}
	return packages, rows.Err()
}

// deletePackage removes a package and its links. It reports whether the
// package existed.
func deletePackage(ctx context.Context, tx *database.Tx, args database.Args) (any, error) {
	id, err := database.Arg[int64](args, 0)
	if err != nil {
		return nil, err
	}
	cur := tx.CreateCursor()
	if _, err := cur.Exec(ctx, "DELETE FROM links WHERE package = ?", id); err != nil {
		return nil, fmt.Errorf("delete links: %w", err)
	}
	if _, err := cur.Exec(ctx, "DELETE FROM packages WHERE id = ?", id); err != nil {
		return nil, fmt.Errorf("delete package: %w", err)
	}
	return cur.RowsAffected() > 0, nil
}

func addLinks(ctx context.Context, tx *database.Tx, args database.Args) (any, error) {
	packageID, err := database.Arg[int64](args, 0)
	if err != nil {
		return nil, err
	}
	urls, err := database.Arg[[]string](args, 1)
	if err != nil {
		return nil, err
	}

	cur := tx.CreateCursor()
	var exists int
	if err := cur.QueryRow(ctx, "SELECT COUNT(*) FROM packages WHERE id = ?", packageID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check package: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("%w: %d", ErrPackageNotFound, packageID)
	}

	var order int
	if err := cur.QueryRow(ctx,
		"SELECT COALESCE(MAX(linkorder) + 1, 0) FROM links WHERE package = ?", packageID).Scan(&order); err != nil {
		return nil, fmt.Errorf("next link order: %w", err)
	}

	ids := make([]int64, 0, len(urls))
	for _, raw := range urls {
		link := strings.TrimSpace(raw)
		if link == "" {
			continue
		}
		if _, err := cur.Exec(ctx,
			"INSERT INTO links (url, name, status, linkorder, package) VALUES (?, ?, ?, ?, ?)",
			link, nameFromURL(link), int(StatusQueued), order, packageID); err != nil {
			return nil, fmt.Errorf("insert link %s: %w", link, err)
		}
		ids = append(ids, cur.LastInsertID())
		order++
	}
	return ids, nil
}

func getLinks(ctx context.Context, tx *database.Tx, args database.Args) (any, error) {
	packageID, err := database.Arg[int64](args, 0)
	if err != nil {
		return nil, err
	}
	rows, err := tx.CreateCursor().Query(ctx,
		`SELECT id, url, COALESCE(name, ''), size, status, plugin, COALESCE(error, ''), linkorder, package
		FROM links WHERE package = ? ORDER BY linkorder, id`, packageID)
	if err != nil {
		return nil, fmt.Errorf("get links: %w", err)
	}
	defer rows.Close()

	var links []Link
	for rows.Next() {
		var (
			l      Link
			status int
		)
		if err := rows.Scan(&l.ID, &l.URL, &l.Name, &l.Size, &status, &l.Plugin, &l.Error, &l.Order, &l.PackageID); err != nil {
			return nil, fmt.Errorf("scan link: %w", err)
		}
		l.Status = LinkStatus(status)
		links = append(links, l)
	}
	return links, rows.Err()
}

func updateLinkStatus(ctx context.Context, tx *database.Tx, args database.Args) (any, error) {
	id, err := database.Arg[int64](args, 0)
	if err != nil {
		return nil, err
	}
	status, err := database.Arg[LinkStatus](args, 1)
	if err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown link status %d", database.ErrBadArgument, int(status))
	}
	message, err := database.OptionalArg(args, 2, "")
	if err != nil {
		return nil, err
	}

	cur := tx.CreateCursor()
	if _, err := cur.Exec(ctx, "UPDATE links SET status = ?, error = ? WHERE id = ?", int(status), message, id); err != nil {
		return nil, fmt.Errorf("update link status: %w", err)
	}
	if cur.RowsAffected() == 0 {
		// Async callers never see the result, so say it in the log.
		logging.WarnWithContext(tx.Logger(), "link status update matched no link", "link_missing",
			logging.Int64("link_id", id),
			logging.String("status", status.String()),
			logging.String(logging.FieldImpact, "status was not recorded"),
		)
		return false, nil
	}
	return true, nil
}

// restartFailed requeues links that failed, were aborted, or went
// temporarily offline, and clears their error text.
func restartFailed(ctx context.Context, tx *database.Tx, _ database.Args) (any, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(restartable)), ", ")
	params := []any{int(StatusQueued)}
	for _, status := range restartable {
		params = append(params, int(status))
	}

	cur := tx.CreateCursor()
	if _, err := cur.Exec(ctx,
		"UPDATE links SET status = ?, error = '' WHERE status IN ("+placeholders+")", params...); err != nil {
		return nil, fmt.Errorf("restart failed links: %w", err)
	}
	return cur.RowsAffected(), nil
}

func packageCount(ctx context.Context, tx *database.Tx, _ database.Args) (any, error) {
	var n int64
	if err := tx.CreateCursor().QueryRow(ctx, "SELECT COUNT(*) FROM packages").Scan(&n); err != nil {
		return nil, fmt.Errorf("count packages: %w", err)
	}
	return n, nil
}
