package cmd

import (
	"net"

	"github.com/spf13/cobra"

	"github.com/jmorganca/seqprep/envconfig"
	"github.com/jmorganca/seqprep/server"
)

func RunServer(cmd *cobra.Command, _ []string) error {
	source, target, err := loadVocabs(vocabDir(cmd))
	if err != nil {
		return err
	}

	hostport, err := envconfig.HostPort()
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", hostport)
	if err != nil {
		return err
	}

	return server.Serve(ln, &server.Server{Source: source, Target: target})
}
