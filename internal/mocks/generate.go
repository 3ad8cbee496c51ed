// Package mocks provides gomock implementations of the portal's repository and auth ports.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	repo := mocks.NewMockUserRepository(ctrl)
//	repo.EXPECT().List(gomock.Any(), gomock.Any()).Return(users, nil)
package mocks

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=user_repository_mock.go github.com/target/powra-portal/internal/core UserRepository

// SessionIntrospector and RoleSource drive the access chain tests.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=auth_ports_mock.go github.com/target/powra-portal/internal/ports SessionIntrospector,RoleSource
