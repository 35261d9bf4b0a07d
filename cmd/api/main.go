//	@title			Supplier Portal API
//	@version		1.0
//	@description	Tenant-scoped job portal: postings, applicant documents and their storage.
//
//	@host		localhost:8080
//	@BasePath	/api/v1
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT Bearer token. Format: **Bearer {token}**

package main

import (
	"fmt"
	"os"

	_ "github.com/techspire01/ciadev/docs/swagger"
	"github.com/techspire01/ciadev/internal/config"
)

func main() {
	cfg := config.Load()
	if err := NewRootCommand(cfg).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
