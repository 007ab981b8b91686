package v1

import (
	"github.com/andreyxaxa/Product-Composite/internal/usecase"
	"github.com/andreyxaxa/Product-Composite/pkg/logger"
)

type V1 struct {
	composite usecase.CompositeUseCase
	logger    logger.Interface
}
