// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package catalog

import (
	"regexp"
	"strings"

	"github.com/AleutianAI/addonlint/services/lint/compat"
	"github.com/AleutianAI/addonlint/services/lint/entity"
	"github.com/AleutianAI/addonlint/services/lint/findings"
)

const docWritePath = "XUL/School_tutorial/DOM_Building_and_HTML_Insertion"

var unsafeHTML = regexp.MustCompile(`(?i)<script|\bon\w+\s*=`)

var remoteURI = regexp.MustCompile(`(?i)^(?:https?:|ftp:|data:|//)`)

// BuildEntities returns a builder preloaded with the built-in entity
// handlers. Callers may register more entities before calling Build.
//
// Thread Safety: Each call returns a new Builder.
func BuildEntities(consts Constants) *entity.Builder {
	b := entity.NewBuilder()
	reg := func(path string, h entity.Handler) {
		if err := b.Register(path, h); err != nil {
			panic(err)
		}
	}
	alias := func(h entity.Handler, paths ...string) {
		if err := b.Alias(h, paths...); err != nil {
			panic(err)
		}
	}

	reg("document.write", documentWrite(consts))
	reg("nsIDNSService.resolve", emitOnResolve(findings.Finding{
		ID:      findings.ID{"js", "entity_values", "nsIDNSServiceResolve"},
		Message: "`nsIDNSService.resolve()` should not be used.",
		Description: []string{"The `nsIDNSService.resolve` method performs a synchronous DNS lookup, " +
			"which will freeze the UI. This can result in severe performance issues. " +
			"`nsIDNSService.asyncResolve()` should be used instead."},
	}))
	reg("nsISound.play", emitOnResolve(findings.Finding{
		ID:      findings.ID{"js", "entity_values", "nsISound_play"},
		Message: "`nsISound.play` should not be used.",
		Description: []string{"The `nsISound.play` function is synchronous, and thus freezes the " +
			"interface while the sound is playing. It should be avoided in favor of the HTML5 audio APIs."},
	}))
	reg("nsIWindowWatcher.openWindow", windowWatcherOpen)
	reg("nsITransferable.init", transferableInit)
	reg("NewTabURL.override", newTabOverride(consts))
	reg("nsIObserverService.addObserver", addObserver)

	alias(emitOnResolve(findings.Finding{
		ID:      findings.ID{"js", "entity_values", "nsIPKThings"},
		Message: "listTokens(), listModules() and listSlots() now return nsISimpleEnumerator instead of nsIEnumerator.",
		Description: []string{
			"listTokens(), listModules() and listSlots() now return nsISimpleEnumerator instead of nsIEnumerator.",
			"See " + consts.BugLink(1220237) + " for more information.",
		},
		Gate:              compat.FX47Definition,
		CompatibilityType: findings.CompatError,
		Tier:              5,
	}), "nsIPK11TokenDB.listTokens", "nsIPKCS11ModuleDB.listModules", "nsIPKCS11Module.listSlots")

	alias(emitOnResolve(findings.Finding{
		ID:      findings.ID{"js", "entity_values", "nsIIOService"},
		Message: `The "newChannel" functions have been deprecated in favor of their new versions (ending with 2).`,
		Description: []string{
			`The "newChannel" functions have been deprecated in favor of their new versions (ending with 2).`,
			"See " + consts.DocLink("Mozilla/Tech/XPCOM/Reference/Interface/nsIIOService") + " for more information.",
		},
		Gate:              compat.FX48Definition,
		CompatibilityType: findings.CompatWarning,
		Tier:              5,
	}), "nsIIOService.newChannel", "nsIIOService.newChannelFromURI", "nsIIOService.newChannelFromURIWithProxyFlags")

	reg("newThread", entity.Static(entity.Capabilities{
		Dangerous: always("Creating threads from extensions can lead to crashes and deadlocks."),
	}))
	reg("processNextEvent", entity.Static(entity.Capabilities{
		Dangerous: always("Spinning the event loop with `processNextEvent` causes re-entrancy bugs and hangs."),
	}))

	return b
}

func always(message string) func(entity.Context) (string, bool) {
	return func(entity.Context) (string, bool) { return message, true }
}

// emitOnResolve reports f every time the entity is referenced.
func emitOnResolve(f findings.Finding) entity.Handler {
	return func(ctx entity.Context) entity.Capabilities {
		entity.Emit(ctx, f)
		return entity.Capabilities{}
	}
}

func literalString(ctx entity.Context, n entity.Node) (string, bool) {
	v, ok := ctx.ResolveValue(n).LiteralValue()
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func documentWrite(consts Constants) entity.Handler {
	return func(entity.Context) entity.Capabilities {
		return entity.Capabilities{
			Return: func(ctx entity.Context, args []entity.Node) {
				entity.Emit(ctx, findings.Finding{
					ID:      findings.ID{"js", "document.write", "evil"},
					Message: "Use of `document.write` strongly discouraged.",
					Description: []string{"`document.write` will fail in many circumstances when used in " +
						"extensions, and has potentially severe security repercussions when used " +
						"improperly. Therefore, it should not be used. See " + consts.DocLink(docWritePath) +
						" for more information."},
				})
				if len(args) == 0 {
					return
				}
				html, ok := literalString(ctx, args[0])
				if !ok || !unsafeHTML.MatchString(html) {
					return
				}
				entity.Emit(ctx, findings.Finding{
					ID:      findings.ID{"js", "document.write", "unsafe_html"},
					Message: "Markup containing scripts or event handlers passed to `document.write()`",
					Description: []string{"Writing markup with inline scripts or event handler attributes " +
						"executes code in the page context and is not permitted."},
				})
			},
		}
	}
}

func windowWatcherOpen(entity.Context) entity.Capabilities {
	return entity.Capabilities{
		Return: func(ctx entity.Context, args []entity.Node) {
			if len(args) == 0 {
				return
			}
			uri, ok := literalString(ctx, args[0])
			if !ok || !remoteURI.MatchString(strings.TrimSpace(uri)) {
				return
			}
			entity.Emit(ctx, findings.Finding{
				ID:      findings.ID{"js", "nsIWindowWatcher", "openWindow", "remote"},
				Message: "`nsIWindowWatcher.openWindow` called with a remote URI.",
				Description: []string{"Loading remote content in a chrome-privileged window gives " +
					"that content full access to the browser. Use a content window instead."},
				SigningSeverity: findings.SigningMedium,
			})
		},
	}
}

func transferableInit(entity.Context) entity.Capabilities {
	return entity.Capabilities{
		Return: func(ctx entity.Context, args []entity.Node) {
			if len(args) == 0 {
				return
			}
			v, ok := ctx.ResolveValue(args[0]).LiteralValue()
			if !ok || entity.Truthy(v) {
				return
			}
			entity.Emit(ctx, findings.Finding{
				ID:      findings.ID{"js_entity_values", "nsITransferable", "init"},
				Message: "`init` should not be called with a null first argument",
				Description: []string{"Calling `nsITransferable.init()` with a null first argument has " +
					"the potential to leak data across private browsing mode sessions. `null` is " +
					"appropriate only when reading data or writing data which is not associated " +
					"with a particular window."},
			})
		},
	}
}

func newTabOverride(consts Constants) entity.Handler {
	return func(entity.Context) entity.Capabilities {
		return entity.Capabilities{
			Return: func(ctx entity.Context, _ []entity.Node) {
				entity.Emit(ctx, findings.Finding{
					ID:      findings.ID{"js_entity_values", "NewTabURL", "override"},
					Message: "Extensions must not alter user preferences such as the new tab URL without explicit user consent.",
					Description: []string{"Extensions must not alter user preferences such as the new tab " +
						"URL without explicit user consent. Such changes must also be reverted when the " +
						"extension is disabled or uninstalled."},
					SigningSeverity: findings.SigningHigh,
					SigningHelp: "Add-ons which directly change these preferences must undergo manual " +
						"code review for at least one submission. " + consts.CustomizationAPIHelp,
				})
			},
		}
	}
}

func addObserver(entity.Context) entity.Capabilities {
	return entity.Capabilities{
		Return: func(ctx entity.Context, args []entity.Node) {
			if len(args) < 2 {
				return
			}
			topic, ok := literalString(ctx, args[1])
			if !ok || topic != "newtab-url-changed" {
				return
			}
			entity.Emit(ctx, findings.Finding{
				ID:      findings.ID{"js_entity_values", "nsIObserverService", "newtab_url_changed"},
				Message: "Extensions must not use the `newtab-url-changed` event to revert changes made to the new tab url.",
				Description: []string{"To avoid conflicts, extensions are not allowed to add an observer " +
					"to the `newtab-url-changed` event in order to revert changes that have been made " +
					"to the new tab url."},
				SigningSeverity: findings.SigningHigh,
				SigningHelp:     "Add-ons which use `newtab-url-changed` to change the new tab url are not allowed.",
			})
		},
		Dangerous: func(ctx entity.Context) (string, bool) {
			v, ok := ctx.Resource("em:bootstrap")
			if !ok || !entity.Truthy(v) {
				return "", false
			}
			return "Authors of bootstrapped add-ons must take care to remove any added observers at shutdown.", true
		},
	}
}
