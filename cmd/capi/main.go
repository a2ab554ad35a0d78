//go:build cgo

// Command capi builds the solver as a C shared library:
//
//	go build -buildmode=c-shared -o libdcop.so ./cmd/capi
//
// Consumers include dcop.h from this directory. OpResult carries status and
// error after data and len, so its layout differs from the two-field
// { double*; uintptr_t } result and old callers must be recompiled.
package main

/*
#include <stdlib.h>
#include "dcop.h"
*/
import "C"

import (
	"unsafe"

	"github.com/edp1096/dcop/pkg/solver"
)

// solve_netlist solves a NUL terminated netlist. On success data holds len
// values and status is 0. Otherwise status is the error kind and error
// describes it. The caller releases the result once with free_result.
//
//export solve_netlist
func solve_netlist(input *C.char) C.OpResult {
	if input == nil {
		return errorResult(solver.KindParse, "netlist is NULL")
	}
	return solve(C.GoString(input))
}

func solve(input string) C.OpResult {
	res, err := solver.Solve(input)
	if err != nil {
		return errorResult(solver.Classify(err), err.Error())
	}
	defer res.Release()

	var out C.OpResult
	out.len = C.size_t(res.Len())
	if res.Len() == 0 {
		return out
	}

	size := C.size_t(res.Len()) * C.size_t(unsafe.Sizeof(C.double(0)))
	out.data = (*C.double)(C.malloc(size))
	data := unsafe.Slice(out.data, res.Len())
	for i, v := range res.Values {
		data[i] = C.double(v)
	}
	return out
}

func errorResult(kind solver.ErrorKind, msg string) C.OpResult {
	var out C.OpResult
	out.status = C.int(kind)
	out.error = C.CString(msg)
	return out
}

// values copies the data buffer of a result into Go memory.
func values(res C.OpResult) []float64 {
	if res.data == nil {
		return nil
	}
	out := make([]float64, int(res.len))
	for i, v := range unsafe.Slice(res.data, int(res.len)) {
		out[i] = float64(v)
	}
	return out
}

// free_result releases the buffers of a result returned by solve_netlist.
//
//export free_result
func free_result(res C.OpResult) {
	C.free(unsafe.Pointer(res.data))
	C.free(unsafe.Pointer(res.error))
}

func main() {}
