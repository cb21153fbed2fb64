package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"wordvm/vm"
)

var (
	entryName   = flag.String("entry", "main", "name of the .code block to execute")
	heapSize    = flag.Int("heap", 1<<20, "heap size in bytes")
	globalCount = flag.Int("globals", 0, "number of global slots")
	maxCycles   = flag.Uint64("cycles", 0, "maximum instruction cycles, 0 for unlimited")
	deadline    = flag.Uint64("deadline", 0, "deadline in nanoseconds since the Unix epoch, 0 for unlimited")
	debugMode   = flag.Bool("debug", false, "print the entry block's disassembly before running")
)

func main() {
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		fmt.Println("usage: wordvm [flags] <program.wvasm> [arg1 arg2 ...]")
		os.Exit(1)
	}

	source, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	program, err := vm.Assemble(string(source))
	if err != nil {
		fmt.Println("assemble:", err)
		os.Exit(1)
	}

	entryOffset, ok := program.Symbols[*entryName]
	if !ok {
		fmt.Printf("no .code block named %q\n", *entryName)
		os.Exit(1)
	}

	wordArgs := make([]vm.Word, 0, len(args)-1)
	for _, a := range args[1:] {
		n, err := strconv.ParseInt(a, 0, 64)
		if err != nil {
			fmt.Println("bad argument", a, err)
			os.Exit(1)
		}
		wordArgs = append(wordArgs, vm.Word(n))
	}

	if *debugMode {
		pool := vm.NewPool(program.Pool)
		code, fault := pool.GetCode(pool.AddrFromOffset(entryOffset))
		if fault == nil {
			fmt.Print(vm.Disassemble(code.Bytecode))
		}
	}

	heap := make([]byte, *heapSize)
	machine, fault := vm.New(program.Pool, heap, *globalCount, func() uint64 {
		return uint64(time.Now().UnixNano())
	})
	if fault != nil {
		fmt.Println(fault)
		os.Exit(1)
	}

	var cyclesArg, deadlineArg *uint64
	if *maxCycles != 0 {
		cyclesArg = maxCycles
	}
	if *deadline != 0 {
		deadlineArg = deadline
	}

	results := make([]vm.Word, 8)
	n, fault := machine.Execute(entryOffset, wordArgs, results, cyclesArg, deadlineArg)
	if fault != nil {
		pool := vm.NewPool(program.Pool)
		traceHeap := vm.NewHeap(heap)
		fmt.Print(vm.FormatTrace(pool, traceHeap, fault))
		os.Exit(1)
	}

	for i := 0; i < n && i < len(results); i++ {
		fmt.Println(int(results[i]))
	}
}
