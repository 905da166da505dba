// admin-token 用配置中的 jwt.secret 签发管理员 token。
//
//	go run ./cmd/admin-token -sub ops -ttl 24h
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"WarRoster/config"
	"WarRoster/internal/middleware"
	"WarRoster/internal/utils"
)

func main() {
	cfgPath := flag.String("config", "config/config.yaml", "config file")
	sub := flag.String("sub", "admin", "token subject")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	if err := config.Load(*cfgPath); err != nil {
		utils.Print.Fatal("config load failed", "err", err)
	}
	token, err := middleware.IssueToken([]byte(config.C.JWT.Secret), *sub, *ttl)
	if err != nil {
		utils.Print.Fatal("issue token failed", "err", err)
	}
	fmt.Fprintln(os.Stdout, token)
}
