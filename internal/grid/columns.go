package grid

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyColumnName = errors.New("column name cannot be empty")
	ErrDeclined        = errors.New("declined by user")
)

// Confirmer is the blocking yes/no gate in front of destructive operations.
type Confirmer interface {
	Confirm(prompt string) bool
}

// ConfirmerFunc adapts a function to the Confirmer interface.
type ConfirmerFunc func(prompt string) bool

func (f ConfirmerFunc) Confirm(prompt string) bool { return f(prompt) }

// AlwaysConfirm approves every prompt. Useful for non-interactive callers.
var AlwaysConfirm = ConfirmerFunc(func(string) bool { return true })

// ColumnMutationController issues add-column and delete-column intents. Both
// redefine the shape of every record, so both end in a full schema+record
// reload instead of any incremental client-side patch.
type ColumnMutationController struct {
	client   *Client
	notifier *Notifier
	confirm  Confirmer
	refresh  func(ctx context.Context)
}

func NewColumnMutationController(client *Client, notifier *Notifier, confirm Confirmer, refresh func(ctx context.Context)) *ColumnMutationController {
	if confirm == nil {
		confirm = AlwaysConfirm
	}
	return &ColumnMutationController{client: client, notifier: notifier, confirm: confirm, refresh: refresh}
}

// AddColumn rejects blank names locally, with no network call. Uniqueness is
// the server's call; either way the schema and records reload afterwards.
func (c *ColumnMutationController) AddColumn(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyColumnName
	}

	if err := c.client.AddColumn(ctx, name); err != nil {
		c.notifier.Error(err.Error())
		return err
	}

	c.notifier.Ok(fmt.Sprintf("Column '%s' added.", name))
	c.refresh(ctx)
	return nil
}

// DeleteColumn removes the column from the schema and from every record's
// data mapping server-side. It is destructive, so the confirm gate runs
// before any network call; declining is a local no-op.
func (c *ColumnMutationController) DeleteColumn(ctx context.Context, name string) error {
	if !c.confirm.Confirm(fmt.Sprintf("Delete column %q from every record?", name)) {
		return ErrDeclined
	}

	if err := c.client.DeleteColumn(ctx, name); err != nil {
		c.notifier.Error(err.Error())
		return err
	}

	c.notifier.Ok(fmt.Sprintf("Column '%s' deleted.", name))
	c.refresh(ctx)
	return nil
}
