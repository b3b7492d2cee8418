/*
Copyright © 2025 Godwin Mafireyi (mafireyi@gmail.com)
*/
package main

import "github.com/gmaffy/bamqc/cmd"

func main() {
	cmd.Execute()
}
