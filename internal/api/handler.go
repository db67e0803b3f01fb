package api

import (
	"log/slog"

	"github.com/shaiso/Fabrika/internal/repo"
	"github.com/shaiso/Fabrika/internal/workflow"
)

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	engine    *workflow.Engine
	directory *repo.DirectoryRepo
	logger    *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Engine    *workflow.Engine
	Directory *repo.DirectoryRepo
	Logger    *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{
		engine:    cfg.Engine,
		directory: cfg.Directory,
		logger:    cfg.Logger,
	}
}
