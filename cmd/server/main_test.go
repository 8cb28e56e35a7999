package main

import (
	"context"
	"testing"

	"github.com/sheikh-saqib/till-ledger/internal/config"
	"github.com/sheikh-saqib/till-ledger/internal/ledger"
	"github.com/sheikh-saqib/till-ledger/internal/storage/memory"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestStartOrderPipeline_DisabledWithoutKafka(t *testing.T) {
	cfg := &config.Config{}
	cfg.Kafka.Enabled = false
	cfg.Tasks.Workers = 2

	l := ledger.NewLedger(memory.NewMemoryRegisterStore())
	queue, stop := startOrderPipeline(context.Background(), cfg, l, nil, zap.NewNop())
	defer stop()

	assert.Nil(t, queue)
}
