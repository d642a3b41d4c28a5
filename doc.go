// Package envy is a retained-mode 2D UI layout engine.
//
// Layouts are authored as [LayoutTemplate] values, either in code or loaded
// from a binary .envy asset, and instantiated into a live [LayoutTree] owned
// by a [LayoutRoot]. Rendering is delegated to a [Backend], which owns the
// GPU-side resources (textures, fonts, uniforms). The ebitenbackend package
// provides a backend built on [Ebitengine].
//
// # Quick start
//
//	root, err := envy.NewLayoutRoot(template, nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//	backend := ebitenbackend.New(ebitenbackend.Options{})
//	ebitenbackend.Run(root, backend, ebitenbackend.RunConfig{
//		Title: "My UI", Width: 1280, Height: 720,
//	})
//
// For full control, drive the frame yourself. Each frame runs the pipeline
// in a fixed order:
//
//	root.UpdateAnimations()
//	root.Update()
//	root.Propagate()
//	root.Prepare(backend)
//	backend.Update()
//	envy.RenderRoot(root, backend, pass)
//
// # Templates and trees
//
// A [NodeTemplate] describes one node: its name, [NodeTransform], color and
// implementation (empty, image, text or sublayout). Sublayout nodes embed a
// named template registered with the root, so a single "button" template can
// be instanced many times. Templates can be edited at runtime and synced into
// the live tree with [LayoutRoot.SyncRootTemplate] and friends.
//
// Node positions are expressed on a virtual canvas of [CanvasWidth] by
// [CanvasHeight] units; the backend maps that canvas onto its view.
//
// # Animation
//
// Each template may carry named [Animation] values. Channels interpolate
// position, size, angle, scale and color over frames using stepping
// functions from [gween]. Play them with [LayoutRoot.PlayAnimation].
//
// # Resources
//
// Image and text nodes refer to textures and fonts by name. The backend hands
// out opaque handles; a missing resource is logged, not fatal, and the node
// renders with a placeholder or not at all.
//
// [Ebitengine]: https://ebitengine.org
// [gween]: https://github.com/tanema/gween
package envy
