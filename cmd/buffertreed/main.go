/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/graphstream/buffertree/cmd/buffertreed/cmd"

func main() {
	cmd.Execute()
}
