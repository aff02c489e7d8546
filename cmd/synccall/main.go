package main

import (
	"github.com/yipyip1/Thesis-Sync-sub000/cmd/synccall/cmd"
)

func main() {
	cmd.Execute()
}
