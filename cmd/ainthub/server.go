package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ainternet/ainthub/internal/auth"
	"github.com/ainternet/ainthub/internal/config"
	"github.com/ainternet/ainthub/internal/db"
	"github.com/ainternet/ainthub/internal/gateway"
	"github.com/ainternet/ainthub/internal/logging"
	"github.com/ainternet/ainthub/internal/ratelimit"
	"github.com/ainternet/ainthub/internal/registry"
	"github.com/ainternet/ainthub/internal/relay"
	"github.com/ainternet/ainthub/internal/server"
	"github.com/ainternet/ainthub/internal/trust"
	"github.com/spf13/cobra"
)

var serverFlags struct {
	apiPort  int
	dnsPort  int
	zone     string
	dbPath   string
	publicIP string
}

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the hub (API and DNS listeners)",
	Long: `Start the AInternet hub with the REST API and the authoritative DNS
server for the aint zone.

On first start an operator key is created and printed once; it authorizes
the approve and suspend endpoints. Agents receive their own keys at
registration.

Note: port 53 requires root or 'setcap cap_net_bind_service'.`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)

	defaults := config.Default()
	serverCmd.Flags().IntVar(&serverFlags.apiPort, "api-port", getEnvInt("AINT_API_PORT", defaults.APIPort), "API port to listen on")
	serverCmd.Flags().IntVar(&serverFlags.dnsPort, "dns-port", getEnvInt("AINT_DNS_PORT", defaults.DNSPort), "DNS port to listen on (53 requires root)")
	serverCmd.Flags().StringVar(&serverFlags.zone, "zone", config.GetEnv("AINT_ZONE", defaults.Zone), "DNS zone apex for agent domains")
	serverCmd.Flags().StringVar(&serverFlags.dbPath, "db", config.GetEnv("AINT_DB", defaults.DBPath), "database path")
	serverCmd.Flags().StringVar(&serverFlags.publicIP, "public-ip", config.GetEnv("AINT_PUBLIC_IP", defaults.PublicIP), "public IP for DNS apex A records")
}

func runServer(cmd *cobra.Command, args []string) error {
	database, err := db.Open(serverFlags.dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer database.Close()

	count, err := db.CountAdminKeys(database)
	if err != nil {
		return fmt.Errorf("count operator keys: %w", err)
	}
	if count == 0 {
		displayKey, prefix, hash, err := auth.GenerateKey(auth.ServiceAdmin)
		if err != nil {
			return fmt.Errorf("generate operator key: %w", err)
		}
		if _, err := db.CreateAdminKey(database, prefix, hash); err != nil {
			return fmt.Errorf("create operator key: %w", err)
		}
		fmt.Println("=============================================================")
		fmt.Println("OPERATOR KEY CREATED (save this, it will not be shown again):")
		fmt.Println(displayKey)
		fmt.Println("=============================================================")
	}

	reg := &registry.Registry{DB: database, Logger: logger.Named("registry")}
	rel := &relay.Relay{DB: database, Registry: reg, Logger: logger.Named("relay")}
	engine := &trust.Engine{DB: database, Logger: logger.Named("trust")}

	gw := &gateway.Gateway{
		DB:       database,
		Registry: reg,
		Relay:    rel,
		Trust:    engine,
		Limiter:  ratelimit.New(),
		Logger:   logger.Named("gateway"),
	}

	apiSrv := &server.APIServer{
		DB:      database,
		Gateway: gw,
		Logger:  logger.Named("api"),
	}

	api := server.NewManagedServer("api", server.DefaultServerConfig(
		fmt.Sprintf(":%d", serverFlags.apiPort),
		apiSrv.Handler(),
		logger.Named("api"),
	))
	logger.Info("starting api server", logging.Port(serverFlags.apiPort))
	api.Start()
	if err := api.WaitForStartup(100 * time.Millisecond); err != nil {
		return err
	}

	dnsSrv := &server.DNSServer{
		Registry: reg,
		Zone:     serverFlags.zone,
		PublicIP: serverFlags.publicIP,
		Logger:   logger.Named("dns"),
	}
	if err := dnsSrv.Start(serverFlags.dnsPort, serverFlags.dnsPort); err != nil {
		return fmt.Errorf("start DNS server: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	api.Shutdown(ctx)
	dnsSrv.Shutdown(ctx)

	return nil
}
