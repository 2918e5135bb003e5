package runtimeabi

// SuperConstructorCall backs __super_constructor_call and
// InvokeDynamic backs __object_invoke_dynamic. Both return 0 without
// invoking anything. The emitter does not route `super(...)` through
// __super_constructor_call: emitSuperCall resolves the parent's constructor
// symbol at emit time. InvokeDynamic looks the method up only for an object
// that carries a class name (objectValue.className, set via SetClassName);
// objects created by __object_create carry none, so for them it only
// returns 0.
func (a *ABI) SuperConstructorCall(thisHandle int64, args []int64) int64 {
	a.log.Debug().Int64("this", thisHandle).Msg("super constructor call is a placeholder pending runtime class-name tracking")
	return 0
}

func (a *ABI) InvokeDynamic(objHandle int64, methodNameHandle int64, args []int64) int64 {
	name, _ := a.strings.get(methodNameHandle)
	className, _ := a.objects.ClassName(objHandle)
	if className != "" {
		if info, ok := a.classes.Lookup(className); ok {
			if _, ok := info.Methods[name]; ok {
				a.log.Debug().Str("method", name).Str("class", className).Msg("dynamic dispatch target resolved but native invocation is unavailable")
			}
		}
	}
	return 0
}
