package main

import "github.com/aleph-zero/segstack/cmd"

func main() {
    cmd.Execute()
}
