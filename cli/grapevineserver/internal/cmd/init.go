package cmd

import (
	"log"
	"path"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/barryWhiteHat/Grapevine/cli"
	"github.com/barryWhiteHat/Grapevine/crypto"
	"github.com/barryWhiteHat/Grapevine/logger"
	"github.com/barryWhiteHat/Grapevine/server"
	"github.com/barryWhiteHat/Grapevine/server/testutil"
	"github.com/barryWhiteHat/Grapevine/utils"
)

// initCmd represents the init command
var initCmd = cli.NewInitCommand("Grapevine server", initRunFunc)

func init() {
	RootCmd.AddCommand(initCmd)
	initCmd.Flags().StringP("dir", "d", ".", "Location of directory for storing generated files")
	initCmd.Flags().BoolP("cert", "c", false, "Generate self-signed ssl keys/cert with sane defaults")
}

func initRunFunc(cmd *cobra.Command, args []string) {
	dir := cmd.Flag("dir").Value.String()
	mkConfig(dir)
	mkFoldParams(dir)

	cert, err := strconv.ParseBool(cmd.Flag("cert").Value.String())
	if err == nil && cert {
		testutil.CreateTLSCert(dir)
	}
}

func mkConfig(dir string) {
	file := path.Join(dir, "config.toml")
	addrs := []*server.Address{
		{
			Address: "unix:///tmp/grapevine.sock",
		},
		{
			Address:     "tcp://0.0.0.0:7040",
			TLSCertPath: "server.pem",
			TLSKeyPath:  "server.key",
		},
	}
	loggerConf := &logger.Config{
		EnableStacktrace: true,
		Environment:      "development",
		Path:             "grapevineserver.log",
	}

	conf := server.NewConfig("grapevine.db", "fold.params", addrs, loggerConf)
	if err := conf.Save(file); err != nil {
		log.Println(err)
	}
}

func mkFoldParams(dir string) {
	params, err := crypto.MakeRand()
	if err != nil {
		log.Print(err)
		return
	}
	if err := utils.WriteFile(path.Join(dir, "fold.params"), params, 0600); err != nil {
		log.Println(err)
	}
}
