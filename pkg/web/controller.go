package web

import (
	"context"

	"github.com/teslashibe/go-livevoice/pkg/live"
)

// ManagerController adapts a live.Manager to Controller.
type ManagerController struct {
	*live.Manager
}

// Start implements Controller.
func (m ManagerController) Start(ctx context.Context) error {
	_, err := m.Manager.Start(ctx)
	return err
}

var _ Controller = ManagerController{}
