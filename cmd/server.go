package cmd

import (
    "fmt"
    "github.com/aleph-zero/segstack/server"
    "github.com/aleph-zero/segstack/service/registry"
    "github.com/spf13/cobra"
    "github.com/spf13/viper"
    "os"
)

var serverCmd = &cobra.Command{
    Use:   "server",
    Short: "Run a segstack server",
    Long:  "Run a segstack server holding named stacks",
    Run: func(cmd *cobra.Command, args []string) {
        config := server.NewConfig(
            server.WithNodeName(viper.GetString("server.node-name")),
            server.WithAddress(viper.GetString("server.addr")),
            server.WithPort(viper.GetUint16("server.port")),
            server.WithPersistOnExit(viper.GetBool("server.persist-on-exit")),
            server.WithRegistryConfig(registry.NewConfig(
                registry.WithDirectory(viper.GetString("registry.data-dir")),
                registry.WithGroupSizes(
                    viper.GetInt("registry.min-group-size"),
                    viper.GetInt("registry.max-group-size")),
                registry.WithMaxSlots(viper.GetInt("registry.max-slots")))))
        server.Bootstrap(config)
    },
}

const (
    apiListenAddr   = "0.0.0.0"
    apiListenPort   = 1234
    registryDataDir = ".segstack"
)

func init() {
    rootCmd.AddCommand(serverCmd)

    hostname, err := os.Hostname()
    if err != nil {
        fmt.Fprintln(os.Stderr, err)
        os.Exit(1)
    }

    serverCmd.PersistentFlags().String("server.node-name", hostname, "Unique identifier for the server")
    serverCmd.PersistentFlags().String("server.addr", apiListenAddr, "Address to bind to")
    serverCmd.PersistentFlags().Uint16("server.port", apiListenPort, "Port to listen on")
    serverCmd.PersistentFlags().Bool("server.persist-on-exit", true, "Persist the registry on shutdown")
    serverCmd.PersistentFlags().String("registry.data-dir", registryDataDir, "Data directory for the registry")
    serverCmd.PersistentFlags().Int("registry.min-group-size", 0, "Default minimum group size (0 picks one per element size)")
    serverCmd.PersistentFlags().Int("registry.max-group-size", 0, "Default maximum group size (0 means the slot budget)")
    serverCmd.PersistentFlags().Int("registry.max-slots", registry.DefaultMaxSlots, "Element slots each stack may allocate")

    viper.BindPFlag("server.node-name", serverCmd.PersistentFlags().Lookup("server.node-name"))
    viper.BindPFlag("server.addr", serverCmd.PersistentFlags().Lookup("server.addr"))
    viper.BindPFlag("server.port", serverCmd.PersistentFlags().Lookup("server.port"))
    viper.BindPFlag("server.persist-on-exit", serverCmd.PersistentFlags().Lookup("server.persist-on-exit"))
    viper.BindPFlag("registry.data-dir", serverCmd.PersistentFlags().Lookup("registry.data-dir"))
    viper.BindPFlag("registry.min-group-size", serverCmd.PersistentFlags().Lookup("registry.min-group-size"))
    viper.BindPFlag("registry.max-group-size", serverCmd.PersistentFlags().Lookup("registry.max-group-size"))
    viper.BindPFlag("registry.max-slots", serverCmd.PersistentFlags().Lookup("registry.max-slots"))
}
