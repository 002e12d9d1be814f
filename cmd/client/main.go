// A terminal client for the expense tracker wire protocol. It sends one
// command per input line and prints the full response unit, decoding the
// record lines that follow a GET_EXPENSES acknowledgement.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/moussakabalan/multi-user-expense-tracker/internal/model/protocol"
)

func main() {
	addr := flag.String("addr", "localhost:5000", "server address")
	flag.Parse()

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		fmt.Fprintln(os.Stderr, "cannot connect:", err)
		os.Exit(1)
	}
	defer conn.Close()

	serverReader := bufio.NewReader(conn)
	welcome, err := serverReader.ReadString('\n')
	if err != nil {
		fmt.Fprintln(os.Stderr, "no welcome from server:", err)
		os.Exit(1)
	}
	fmt.Print(welcome)

	stdin := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !stdin.Scan() {
			return
		}
		line := strings.TrimSpace(stdin.Text())
		if line == "" {
			continue
		}

		if _, err = fmt.Fprintf(conn, "%s\n", line); err != nil {
			fmt.Fprintln(os.Stderr, "connection lost:", err)
			return
		}

		response, err := serverReader.ReadString('\n')
		if err != nil {
			fmt.Fprintln(os.Stderr, "connection lost:", err)
			return
		}
		fmt.Print(response)

		verb := strings.ToUpper(strings.SplitN(line, protocol.Delimiter, 2)[0])
		success := strings.HasPrefix(response, "SUCCESS"+protocol.Delimiter)

		if verb == "GET_EXPENSES" && success {
			printRecords(serverReader, response)
		}
		if (verb == "QUIT" || verb == "EXIT") && success {
			return
		}
	}
}

func printRecords(serverReader *bufio.Reader, ack string) {
	payload := strings.TrimSpace(strings.TrimPrefix(ack, "SUCCESS"+protocol.Delimiter))
	count, err := strconv.Atoi(payload)
	if err != nil {
		return
	}

	for i := 0; i < count; i++ {
		recordLine, err := serverReader.ReadString('\n')
		if err != nil {
			fmt.Fprintln(os.Stderr, "connection lost:", err)
			return
		}
		rec, err := protocol.DecodeRecord(strings.TrimSpace(recordLine))
		if err != nil {
			fmt.Printf("  (undecodable record: %v)\n", err)
			continue
		}
		fmt.Printf("  %s  %s  %s  %s\n", rec.Date, rec.DisplayAmount(), rec.Category, rec.Note)
	}
}
