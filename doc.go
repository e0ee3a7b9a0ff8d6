// Package docsync keeps a client's view of a mynotes workspace in sync with
// the backend.
//
// # Caches
//
// State is split into caches, each owning one slice of it:
//
//   - [document.Cache] holds the open document, per-space and per-parent
//     listings and the has-children index.
//   - [preferences.Cache] holds the UI preference record, mirrored to a local
//     store.
//   - [favorite.Set] and [space.Cache] hold the user's favorites and spaces.
//   - [sidebar.Sidebar] holds the sidebar geometry.
//   - [session.Gate] holds the token and tears everything down on logout.
//
// Every cache is safe for concurrent use and exposes Subscribe, which delivers
// an immutable snapshot after each change.
//
// # Workspace
//
// [New] builds all caches around one [gateway.Gateway] and wires them
// together: login loads preferences before returning, logout clears them and
// resets every other cache, and a 401 from the backend closes the session.
//
//	client := gateway.NewClient("http://127.0.0.1:8080/api")
//	ws, err := docsync.New(ctx, client, docsync.WithStore(store))
//	if err != nil {
//		return err
//	}
//	defer ws.Close()
//
//	if err := ws.Login(ctx, email, password); err != nil {
//		return err
//	}
//	err = ws.Documents.FetchBySlug(ctx, "roadmap")
//
// # Local store
//
// [localstore.Store] stands in for browser local storage. Memory, file and
// Redis backends are provided.
package docsync
