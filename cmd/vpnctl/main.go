// Package main vpnctl: администрирование движка подписок из терминала.
package main

import "os"

func main() {
	if err := newRootCmd(connectBackend).Execute(); err != nil {
		os.Exit(1)
	}
}
