// Command libforexcell builds the C shared library that embeds the
// forexcell runtime in a host application:
//
//	go build -buildmode=c-shared -o libforexcell.so ./cmd/libforexcell
package main

/*
#include <stdlib.h>

// topic: event name, payload: JSON
typedef void (*EventCallback)(char* topic, char* payload);

static void invokeCallback(EventCallback cb, char* topic, char* payload) {
    if (cb) {
        cb(topic, payload);
    }
}
*/
import "C"
import (
	"context"
	"sync"
	"unsafe"

	"github.com/dyike/forexcell/config"
	"github.com/dyike/forexcell/pkg/app"
	"github.com/dyike/forexcell/pkg/bridge"
)

var (
	globalCallback C.EventCallback

	mu      sync.Mutex
	runtime *app.Runtime
	cfgMgr  *config.Manager
)

func init() {
	bridge.SetNotifyImpl(func(topic, payload string) {
		if globalCallback == nil {
			return
		}
		cTopic := C.CString(topic)
		cPayload := C.CString(payload)
		defer C.free(unsafe.Pointer(cTopic))
		defer C.free(unsafe.Pointer(cPayload))

		C.invokeCallback(globalCallback, cTopic, cPayload)
	})
}

//export InitSDK
func InitSDK(workDir *C.char, configJson *C.char) *C.char {
	dir := C.GoString(workDir)
	cfgJSON := C.GoString(configJson)

	mu.Lock()
	defer mu.Unlock()
	if runtime != nil {
		return C.CString("Success")
	}

	mgr, err := config.NewManager(config.WithConfigDir(dir), config.WithInitialConfig(config.DefaultConfigWithRoot(dir)))
	if err != nil {
		return C.CString("Error: " + err.Error())
	}
	if cfgJSON != "" {
		if err := mgr.UpdateFromJSON(cfgJSON); err != nil {
			mgr.Close()
			return C.CString("Error: " + err.Error())
		}
	}
	rt, err := app.NewRuntime(mgr, app.WithNotifier(bridge.Notify))
	if err != nil {
		mgr.Close()
		return C.CString("Error: " + err.Error())
	}
	cfgMgr, runtime = mgr, rt
	return C.CString("Success")
}

//export RegisterCallback
func RegisterCallback(cb C.EventCallback) {
	globalCallback = cb
}

//export UpdateConfig
func UpdateConfig(jsonStr *C.char) *C.char {
	mu.Lock()
	rt := runtime
	mu.Unlock()
	if rt == nil {
		return C.CString("Error: SDK not initialized")
	}
	if err := rt.UpdateConfigJSON(C.GoString(jsonStr)); err != nil {
		return C.CString("Error: " + err.Error())
	}
	return C.CString("Success")
}

//export Call
func Call(method *C.char, params *C.char) *C.char {
	mu.Lock()
	rt := runtime
	mu.Unlock()
	if rt == nil {
		return C.CString(`{"code":500,"msg":"SDK not initialized"}`)
	}
	resp := rt.Dispatch(context.Background(), C.GoString(method), C.GoString(params))
	return C.CString(resp)
}

//export Shutdown
func Shutdown() {
	mu.Lock()
	defer mu.Unlock()
	if runtime != nil {
		runtime.Close()
		runtime = nil
	}
	if cfgMgr != nil {
		cfgMgr.Close()
		cfgMgr = nil
	}
}

//export FreeString
func FreeString(str *C.char) {
	C.free(unsafe.Pointer(str))
}

func main() {}
