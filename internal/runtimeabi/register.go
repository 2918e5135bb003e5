package runtimeabi

import (
	"reflect"

	"github.com/example/gots/internal/registry"
	"github.com/example/gots/internal/types"
)

// RegisterAll binds every §6 runtime-ABI symbol emitted code can reference
// by name into reg, so internal/emit.EmitCallKnown resolves all of them
// before any GoTS source is compiled.
//
// Every symbol is registered through RegisterHostName: the address is
// reflect.ValueOf(fn).Pointer(), the entry point of the Go function that
// implements it, and the registry marks it Go-hosted. Such an address
// resolves like any other for call-site emission and the fast-ID table,
// but it is NOT one raw SysV machine code may jump to — Go's internal ABI
// differs in argument registers, stack handling, and the g register, and
// the runtime cannot unwind across foreign frames, so the SysV-to-Go
// direction of the calling boundary stays closed (the Go-to-SysV direction
// is real, see internal/native). The host marking is what makes the gap
// fail loudly instead of silently: the compiler's link phase reports every
// emitted call into a Go-hosted symbol via CompileResult.HostSymbols, and
// cmd/gotsc refuses to execute such a program rather than corrupting a
// frame at run time. DESIGN.md's "The native-call boundary" section
// records what closing the remaining direction would take.
func RegisterAll(reg *registry.Registry, abi *ABI) {
	reg.RegisterHostName("__console_log", addrOf(abi.logStringShim))
	reg.RegisterHostName("__console_log_string", addrOf(abi.logStringShim))
	reg.RegisterHostName("__console_log_array", addrOf(abi.logArrayShim))
	reg.RegisterHostName("__console_log_object", addrOf(abi.logObjectShim))
	reg.RegisterHostName("__console_log_auto", addrOf(abi.console.LogAuto))
	reg.RegisterHostName("__console_log_number", addrOf(abi.console.LogNumber))
	reg.RegisterHostName("__console_log_space", addrOf(abi.console.LogSpace))
	reg.RegisterHostName("__console_log_newline", addrOf(abi.console.LogNewline))
	reg.RegisterHostName("__console_time", addrOf(abi.timeShim))
	reg.RegisterHostName("__console_timeEnd", addrOf(abi.timeEndShim))

	reg.RegisterHostName("__string_create", addrOf(abi.internShim))
	reg.RegisterHostName("__string_create_empty", addrOf(abi.strings.CreateEmpty))
	reg.RegisterHostName("__string_intern", addrOf(abi.internShim))
	reg.RegisterHostName("__string_concat", addrOf(abi.strings.Concat))
	reg.RegisterHostName("__string_concat_cstr", addrOf(abi.strings.ConcatCstr))
	reg.RegisterHostName("__string_concat_cstr_left", addrOf(abi.strings.ConcatCstrLeft))
	reg.RegisterHostName("__string_length", addrOf(abi.strings.Length))
	reg.RegisterHostName("__string_equals", addrOf(abi.strings.Equals))
	reg.RegisterHostName("__string_compare", addrOf(abi.strings.Compare))
	reg.RegisterHostName("__string_char_at", addrOf(abi.strings.CharAt))

	reg.RegisterHostName("__array_create", addrOf(abi.arrayCreateShim))
	reg.RegisterHostName("__array_push", addrOf(abi.arrays.Push))
	reg.RegisterHostName("__array_pop", addrOf(abi.arrays.Pop))
	reg.RegisterHostName("__array_access", addrOf(abi.arrays.Get))
	reg.RegisterHostName("__array_get", addrOf(abi.arrays.Get))
	reg.RegisterHostName("__array_size", addrOf(abi.arrays.Size))
	reg.RegisterHostName("__array_data", addrOf(abi.arrayDataShim))

	reg.RegisterHostName("__simple_array_push", addrOf(abi.arrays.Push))
	reg.RegisterHostName("__simple_array_pop", addrOf(abi.arrays.Pop))
	reg.RegisterHostName("__simple_array_get", addrOf(abi.arrays.Get))
	reg.RegisterHostName("__simple_array_set", addrOf(abi.arrays.Set))
	reg.RegisterHostName("__simple_array_length", addrOf(abi.arrays.Size))
	reg.RegisterHostName("__simple_array_shape", addrOf(abi.arrayShapeShim))
	reg.RegisterHostName("__simple_array_slice", addrOf(abi.arrays.Slice))
	reg.RegisterHostName("__simple_array_sum", addrOf(abi.arrays.Sum))
	reg.RegisterHostName("__simple_array_mean", addrOf(abi.arrays.Mean))
	reg.RegisterHostName("__simple_array_max", addrOf(abi.arrays.Max))
	reg.RegisterHostName("__simple_array_min", addrOf(abi.arrays.Min))
	reg.RegisterHostName("__simple_array_toString", addrOf(abi.arrayToStringShim))
	reg.RegisterHostName("__simple_array_zeros", addrOf(abi.arrays.Zeros))
	reg.RegisterHostName("__simple_array_ones", addrOf(abi.arrays.Ones))
	reg.RegisterHostName("__simple_array_arange", addrOf(abi.arrays.Arange))
	reg.RegisterHostName("__simple_array_linspace", addrOf(abi.arrays.Linspace))

	for _, t := range []string{"int8", "int16", "int32", "int64", "uint8", "uint16", "uint32", "uint64", "float32", "float64"} {
		reg.RegisterHostName("__typed_array_create_"+t, addrOf(abi.arrayCreateShim))
		reg.RegisterHostName("__typed_array_push_"+t, addrOf(abi.arrays.Push))
		reg.RegisterHostName("__typed_array_pop_"+t, addrOf(abi.arrays.Pop))
		reg.RegisterHostName("__typed_array_get_"+t, addrOf(abi.arrays.Get))
		reg.RegisterHostName("__typed_array_set_"+t, addrOf(abi.arrays.Set))
		reg.RegisterHostName("__typed_array_size_"+t, addrOf(abi.arrays.Size))
		reg.RegisterHostName("__typed_array_raw_data_"+t, addrOf(abi.arrayDataShim))
	}

	reg.RegisterHostName("__object_create", addrOf(abi.objects.Create))
	reg.RegisterHostName("__object_get_property", addrOf(abi.objectGetFieldShim))
	reg.RegisterHostName("__object_set_property", addrOf(abi.objectSetFieldShim))
	reg.RegisterHostName("__object_get_property_name", addrOf(abi.objectGetPropertyShim))
	reg.RegisterHostName("__object_set_property_name", addrOf(abi.objectSetPropertyShim))
	reg.RegisterHostName("__object_property_count", addrOf(abi.objectPropertyCountShim))
	reg.RegisterHostName("__object_property_name_at", addrOf(abi.objectPropertyNameAtShim))
	reg.RegisterHostName("__object_invoke_dynamic", addrOf(abi.InvokeDynamic))
	reg.RegisterHostName("__object_destroy", addrOf(abi.objectDestroyShim))
	reg.RegisterHostName("__static_set_property", addrOf(abi.StaticSetProperty))
	reg.RegisterHostName("__static_get_property", addrOf(abi.StaticGetProperty))
	reg.RegisterHostName("__register_class_inheritance", addrOf(abi.RegisterClassInheritance))
	reg.RegisterHostName("__super_constructor_call", addrOf(abi.SuperConstructorCall))

	reg.RegisterHostName("__regex_compile", addrOf(abi.regexCompileShim))
	reg.RegisterHostName("__regex_test", addrOf(abi.regexTestShim))
	reg.RegisterHostName("__regex_exec", addrOf(abi.regexExecShim))
	reg.RegisterHostName("__regex_source", addrOf(abi.regexSourceShim))
	reg.RegisterHostName("__regex_global", addrOf(abi.regexes.Global))
	reg.RegisterHostName("__regex_ignoreCase", addrOf(abi.regexes.IgnoreCase))

	reg.RegisterHostName("__runtime_pow", addrOf(abi.Pow))
	reg.RegisterHostName("__runtime_modulo", addrOf(abi.Modulo))
	reg.RegisterHostName("__runtime_js_equal", addrOf(abi.JSEqual))
	reg.RegisterHostName("__runtime_process_pid", addrOf(abi.ProcessPID))
	reg.RegisterHostName("__runtime_process_cwd", addrOf(abi.processCwdShim))
	reg.RegisterHostName("__runtime_time_now_millis", addrOf(abi.TimeNowMillis))
	reg.RegisterHostName("__runtime_time_now_nanos", addrOf(abi.TimeNowNanos))
	reg.RegisterHostName("__date_now", addrOf(abi.DateNow))

	reg.RegisterHostName("__promise_resolve", addrOf(abi.Resolve))
	reg.RegisterHostName("__promise_await", addrOf(abi.Await))
	reg.RegisterHostName("__promise_all", addrOf(abi.All))

	reg.RegisterHostName("__goroutine_spawn", addrOf(abi.spawnDirectShim))
	reg.RegisterHostName("__goroutine_spawn_direct", addrOf(abi.spawnDirectShim))
	reg.RegisterHostName("__goroutine_spawn_with_offset", addrOf(abi.spawnDirectShim))
	reg.RegisterHostName("__goroutine_spawn_with_arg1", addrOf(abi.spawnArg1Shim))
	reg.RegisterHostName("__goroutine_spawn_with_arg2", addrOf(abi.spawnArg2Shim))
	reg.RegisterHostName("__goroutine_spawn_with_scope", addrOf(abi.spawnDirectShim))
	reg.RegisterHostName("__goroutine_spawn_fast", addrOf(abi.spawnFastShim))
	reg.RegisterHostName("__goroutine_spawn_fast_arg1", addrOf(abi.spawnFastArg1Shim))
	reg.RegisterHostName("__goroutine_spawn_fast_arg2", addrOf(abi.spawnFastArg2Shim))
	reg.RegisterHostName("__register_function_fast", addrOf(abi.RegisterFunctionFast))
	reg.RegisterHostName("__lookup_function_fast", addrOf(abi.lookupFastShim))
	reg.RegisterHostName("__set_goroutine_context", addrOf(abi.SetGoroutineContext))

	reg.RegisterHostName("__gots_set_timeout", addrOf(abi.setTimeoutShim))
	reg.RegisterHostName("__gots_set_interval", addrOf(abi.setIntervalShim))
	reg.RegisterHostName("__gots_clear_timeout", addrOf(abi.ClearTimeout))
	reg.RegisterHostName("__gots_clear_interval", addrOf(abi.ClearInterval))
}

func addrOf(fn any) uintptr {
	return reflect.ValueOf(fn).Pointer()
}

// The shim methods below exist only to give a fixed-arity, (..., int64)
// int64 shape to ABI methods whose natural Go signature carries extra
// bookkeeping (a *stringTable, a []int64, an (int64, bool) pair) that a
// real SysV call site has no register for — the eventual trampoline
// generator closes over those directly instead of passing them as
// arguments. Keeping them here, rather than changing the methods above,
// keeps each table's own API honest about what it needs.

func (a *ABI) logStringShim(h int64) int64 { return a.console.LogString(h, a.strings) }
func (a *ABI) logArrayShim(h int64) int64  { return a.console.LogArray(h, a.arrays) }
func (a *ABI) logObjectShim(h int64) int64 { return a.console.LogObject(h, a.objects) }
func (a *ABI) timeShim(h int64) int64      { return a.console.Time(h, a.strings) }
func (a *ABI) timeEndShim(h int64) int64   { return a.console.TimeEnd(h, a.strings) }
func (a *ABI) internShim(h int64) int64 {
	s, _ := a.strings.get(h)
	return a.strings.Intern(s)
}
func (a *ABI) arrayCreateShim(elemType int64) int64 {
	return a.arrays.Create(types.DataType(elemType))
}
func (a *ABI) arrayToStringShim(h int64) int64 { return a.arrays.ToString(h, a.strings) }
func (a *ABI) objectGetFieldShim(h, idx int64) int64 {
	return a.objects.GetField(h, int(idx))
}
func (a *ABI) objectSetFieldShim(h, idx, v int64) int64 {
	return a.objects.SetField(h, int(idx), v)
}
func (a *ABI) objectGetPropertyShim(h, nameHandle int64) int64 {
	name, _ := a.strings.get(nameHandle)
	return a.objects.GetProperty(h, name)
}
func (a *ABI) objectSetPropertyShim(h, nameHandle, v int64) int64 {
	name, _ := a.strings.get(nameHandle)
	return a.objects.SetProperty(h, name, v)
}
func (a *ABI) regexCompileShim(sourceHandle, flagsHandle int64) int64 {
	source, _ := a.strings.get(sourceHandle)
	flags, _ := a.strings.get(flagsHandle)
	return a.regexes.Create(source, flags)
}
func (a *ABI) regexTestShim(h, subjectHandle int64) int64 {
	return a.regexes.Test(h, a.strings, subjectHandle)
}
func (a *ABI) regexSourceShim(h int64) int64 { return a.regexes.Source(h, a.strings) }
func (a *ABI) processCwdShim() int64         { return a.ProcessCwd(a.strings) }
func (a *ABI) spawnDirectShim(addr int64, args ...int64) int64 {
	return a.SpawnDirect(uintptr(addr), args)
}
func (a *ABI) spawnArg1Shim(addr, arg1 int64) int64 {
	return a.SpawnDirect(uintptr(addr), []int64{arg1})
}
func (a *ABI) spawnArg2Shim(addr, arg1, arg2 int64) int64 {
	return a.SpawnDirect(uintptr(addr), []int64{arg1, arg2})
}
func (a *ABI) spawnFastShim(id int64, args ...int64) int64 {
	return a.SpawnFast(uint16(id), args)
}
func (a *ABI) spawnFastArg1Shim(id, arg1 int64) int64 {
	return a.SpawnFast(uint16(id), []int64{arg1})
}
func (a *ABI) spawnFastArg2Shim(id, arg1, arg2 int64) int64 {
	return a.SpawnFast(uint16(id), []int64{arg1, arg2})
}
func (a *ABI) lookupFastShim(id int64) int64 {
	addr, ok := a.LookupFunctionFast(uint16(id))
	if !ok {
		return 0
	}
	return int64(addr)
}
func (a *ABI) setTimeoutShim(callbackRef, delayMs int64) int64 {
	return a.SetTimeout(uint64(a.goroutineCtx.Load()), callbackRef, delayMs)
}
func (a *ABI) setIntervalShim(callbackRef, intervalMs int64) int64 {
	return a.SetInterval(uint64(a.goroutineCtx.Load()), callbackRef, intervalMs)
}
func (a *ABI) objectDestroyShim(h int64) int64 { return a.objects.Destroy(h) }
func (a *ABI) objectPropertyCountShim(h int64) int64 {
	return a.objects.PropertyCount(h)
}
func (a *ABI) objectPropertyNameAtShim(h, idx int64) int64 {
	name, ok := a.objects.PropertyNameAt(h, idx)
	if !ok {
		return a.strings.CreateEmpty()
	}
	return a.strings.Intern(name)
}
func (a *ABI) regexExecShim(h, subjectHandle int64) int64 {
	return a.regexes.Exec(h, a.strings, subjectHandle)
}

// arrayDataShim backs __array_data / __typed_array_raw_data_<T>: with no
// raw pointers in the handle scheme, the handle itself is the stable
// representative of the underlying buffer.
func (a *ABI) arrayDataShim(h int64) int64 { return h }

// arrayShapeShim backs __simple_array_shape: arrays here are 1-D, so the
// shape is a one-element array holding the length.
func (a *ABI) arrayShapeShim(h int64) int64 {
	return a.arrays.CreateFrom(types.NUMBER, []int64{a.arrays.Size(h)})
}
