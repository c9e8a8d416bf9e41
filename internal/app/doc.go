// Package app composes the collaboration engine into a running application.
//
// The package sits above the domain, storage, service, and gateway layers and
// is responsible for wiring them together. It is NOT a business logic layer;
// business rules live in internal/app/services/.
//
// # Package Structure
//
//	internal/app/
//	├── application.go      # Application struct, wiring, and lifecycle
//	├── domain/             # Domain models (pure data structures)
//	│   ├── collab/         # Service requests and the status machine
//	│   ├── fee/            # Platform fee arithmetic
//	│   ├── payment/        # Payment records
//	│   ├── post/           # Deliverable posts and metrics
//	│   └── notification/   # User-facing notifications
//	├── storage/            # Store interfaces plus memory and postgres backends
//	├── gateway/            # Remote backend interface and the Supabase implementation
//	├── services/           # Business logic (requests, payments, insights, sync)
//	├── httpapi/            # HTTP handlers and routing
//	├── system/             # Lifecycle manager for background services
//	└── metrics/            # Prometheus collectors
//
// # Dependency Direction
//
//	cmd/engine/
//	      │
//	      ▼
//	internal/app/ (composition)
//	      │
//	      ├──► internal/app/services/ (business logic)
//	      │           │
//	      │           └──► internal/app/gateway/ (remote backend)
//	      │
//	      └──► internal/app/storage/ (local state)
//
// Services never reach around the gateway to talk to Supabase directly, and
// handlers never touch stores; every write flows through a service so the
// optimistic local mutation and the remote confirmation stay in one place.
package app
