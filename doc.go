// Package scriptload loads serialized module archives and rebuilds the
// object graph they describe.
//
// An archive holds class sources under code/, a constants table in
// constants.pkl and the root object in data.pkl. Classes are imported on
// first use and cached for the rest of the load. Objects whose class
// declares __getstate__ and __setstate__ are rebuilt by running
// __setstate__ on an empty instance; every other object is filled directly
// from its field map.
//
//	module, extra, err := scriptload.LoadFile(ctx, "model.pt",
//		scriptload.WithExtraFiles("meta.json"),
//		scriptload.WithDevice(ivalue.CPU),
//	)
package scriptload
