package main

import (
	"github.com/juls0730/fluxops/cmd/flux/models"
	"github.com/juls0730/fluxops/pkg"
)

func configForTest() models.Config {
	return models.Config{DaemonURL: "http://127.0.0.1:0"}
}

func infoForTest() pkg.Info {
	return pkg.Info{Version: "test"}
}
