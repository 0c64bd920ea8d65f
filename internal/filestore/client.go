package filestore

import (
	"context"

	"haul/internal/database"
)

// Client is a typed front end for the filestore operations.
type Client struct {
	backend *database.Backend
}

// NewClient wraps backend. The extension must be registered on it.
func NewClient(backend *database.Backend) *Client {
	return &Client{backend: backend}
}

// NewPackage describes a package to create.
type NewPackage struct {
	Name     string
	Folder   string
	Site     string
	Password string
	Queue    Queue
}

// AddPackage stores a package and returns its id. An empty folder defaults
// to the package name.
func (c *Client) AddPackage(ctx context.Context, p NewPackage) (int64, error) {
	positional := []any{p.Name}
	if p.Folder != "" {
		positional = append(positional, p.Folder)
	}
	args := database.NewArgs(positional...).
		With("site", p.Site).
		With("password", database.Secret(p.Password)).
		With("queue", p.Queue)
	return database.CallAs[int64](ctx, c.backend, OpAddPackage, args)
}

// Package loads a package by id, or fails with ErrPackageNotFound.
func (c *Client) Package(ctx context.Context, id int64) (Package, error) {
	return database.CallAs[Package](ctx, c.backend, OpGetPackage, database.NewArgs(id))
}

// Packages lists the packages in queue ordered by position.
func (c *Client) Packages(ctx context.Context, queue Queue) ([]Package, error) {
	return database.CallAs[[]Package](ctx, c.backend, OpListPackages, database.NewArgs(queue))
}

// DeletePackage removes the package and its links.
func (c *Client) DeletePackage(ctx context.Context, id int64) (bool, error) {
	return database.CallAs[bool](ctx, c.backend, OpDeletePackage, database.NewArgs(id))
}

// AddLinks appends links to a package and returns their ids in order.
func (c *Client) AddLinks(ctx context.Context, packageID int64, urls ...string) ([]int64, error) {
	return database.CallAs[[]int64](ctx, c.backend, OpAddLinks, database.NewArgs(packageID, urls))
}

// Links lists a package's links in order.
func (c *Client) Links(ctx context.Context, packageID int64) ([]Link, error) {
	return database.CallAs[[]Link](ctx, c.backend, OpGetLinks, database.NewArgs(packageID))
}

// SetLinkStatus records a link's status without waiting for the write.
func (c *Client) SetLinkStatus(id int64, status LinkStatus, message string) error {
	return c.backend.CallAsync(OpUpdateLinkStatus, database.NewArgs(id, status, message))
}

// UpdateLinkStatus records a link's status and reports whether the link exists.
func (c *Client) UpdateLinkStatus(ctx context.Context, id int64, status LinkStatus, message string) (bool, error) {
	return database.CallAs[bool](ctx, c.backend, OpUpdateLinkStatus, database.NewArgs(id, status, message))
}

// RestartFailed requeues failed links and returns how many were reset.
func (c *Client) RestartFailed(ctx context.Context) (int64, error) {
	return database.CallAs[int64](ctx, c.backend, OpRestartFailed, database.Args{})
}

// PackageCount returns the number of stored packages.
func (c *Client) PackageCount(ctx context.Context) (int64, error) {
	return database.CallAs[int64](ctx, c.backend, OpPackageCount, database.Args{})
}
