// Package containers provides testcontainer management for integration tests.
//
// It offers helpers for starting a MySQL 8.0 container during integration
// testing using testcontainers-go, so the rule repositories can be verified
// against the same server the production deployment runs on.
//
// Container Lifecycle:
//
// Containers are typically managed using TestMain in integration test packages:
//
//	var mysqlContainer *containers.MySQLContainer
//
//	func TestMain(m *testing.M) {
//	    var err error
//	    mysqlContainer, err = containers.NewMySQLContainer(context.Background(), nil)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    code := m.Run()
//	    _ = mysqlContainer.Terminate(context.Background())
//	    os.Exit(code)
//	}
//
// Build Tags:
//
// Integration tests using this package should use the "integration" build tag:
//
//	//go:build integration
//
//	go test -tags=integration ./...
package containers
