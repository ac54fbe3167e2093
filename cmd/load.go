package cmd

import (
    "github.com/aleph-zero/segstack/client"
    "github.com/spf13/cobra"
    "github.com/spf13/viper"
)

var loadCmd = &cobra.Command{
    Use:   "load",
    Short: "Load values onto a stack",
    Long:  "Push every line of a newline delimited JSON file onto a stack",
    Run: func(cmd *cobra.Command, args []string) {
        config := client.NewLoaderConfig(
            client.WithClientConfig(clientConfig()),
            client.WithStack(viper.GetString("client.load.stack")),
            client.WithFilename(viper.GetString("client.load.file")))
        client.BootstrapLoader(config)
    },
}

func init() {
    clientCmd.AddCommand(loadCmd)
    loadCmd.Flags().String("client.load.stack", "", "Stack name")
    loadCmd.Flags().String("client.load.file", "", "File of JSON values to push")

    viper.BindPFlag("client.load.stack", loadCmd.Flags().Lookup("client.load.stack"))
    viper.BindPFlag("client.load.file", loadCmd.Flags().Lookup("client.load.file"))
}
