package main

import (
	"context"
	"time"

	"github.com/shandysiswandi/otpauth/internal/app"
)

const shutdownTimeout = 10 * time.Second

// @title           OTP Auth API
// @version         1.0
// @description     Passwordless login with one-time codes sent by SMS.
// @license.name    MIT
// @license.url     https://mit-license.org/
// @server          http://localhost:8080
// @securityDefinitions.apikey  BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT.
func main() {
	application := app.New()
	<-application.Start()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	application.Stop(ctx)
}
