package storage

import (
	"errors"
	"testing"

	"slotswap/pkg/client"
	"slotswap/pkg/config"
)

func TestOpen(t *testing.T) {
	tests := []struct {
		name      string
		backend   string
		wantErr   bool
		notConnIs bool
	}{
		{name: "memory", backend: config.BackendMemory},
		{name: "mongo without client", backend: config.BackendMongo, wantErr: true, notConnIs: true},
		{name: "postgres without client", backend: config.BackendPostgres, wantErr: true, notConnIs: true},
		{name: "unknown backend", backend: "cassandra", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{StorageBackend: tt.backend, Client: client.NewClient()}
			backend, err := Open(cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				if got := errors.Is(err, ErrNotConnected); got != tt.notConnIs {
					t.Errorf("errors.Is(err, ErrNotConnected) = %v, want %v", got, tt.notConnIs)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if backend.Slots == nil || backend.Requests == nil || backend.TxManager == nil {
				t.Errorf("incomplete backend: %+v", backend)
			}
		})
	}
}
