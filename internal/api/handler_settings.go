package api

import (
	"net/http"

	"github.com/eddygk/dns-bench-sub000/internal/model"
	"github.com/eddygk/dns-bench-sub000/internal/settings"
)

// HandleGetLocalDNS returns a handler for GET /settings/local-dns.
func HandleGetLocalDNS(cfg *settings.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := cfg.LocalResolvers()
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, doc)
	}
}

// HandlePutLocalDNS returns a handler for PUT /settings/local-dns.
func HandlePutLocalDNS(cfg *settings.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var doc settings.LocalResolvers
		if err := DecodeBody(r, &doc); err != nil {
			writeDecodeBodyError(w, err)
			return
		}
		if err := cfg.SetLocalResolvers(doc); err != nil {
			writeInvalidArgument(w, err.Error())
			return
		}
		WriteJSON(w, http.StatusOK, doc)
	}
}

// HandleGetPublicDNS returns a handler for GET /settings/public-dns.
func HandleGetPublicDNS(cfg *settings.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := cfg.PublicResolvers()
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, doc)
	}
}

// HandlePutPublicDNS returns a handler for PUT /settings/public-dns. Built-in
// entries missing from the submitted document are restored, so the response
// body is the effective document, not necessarily the submitted one.
func HandlePutPublicDNS(cfg *settings.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var doc settings.PublicResolvers
		if err := DecodeBody(r, &doc); err != nil {
			writeDecodeBodyError(w, err)
			return
		}
		if err := cfg.SetPublicResolvers(doc); err != nil {
			writeInvalidArgument(w, err.Error())
			return
		}
		stored, err := cfg.PublicResolvers()
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, stored)
	}
}

// HandleGetTestConfig returns a handler for GET /settings/test-config.
func HandleGetTestConfig(cfg *settings.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := cfg.TestProfile()
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, doc)
	}
}

// HandlePutTestConfig returns a handler for PUT /settings/test-config.
func HandlePutTestConfig(cfg *settings.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var doc model.TestProfile
		if err := DecodeBody(r, &doc); err != nil {
			writeDecodeBodyError(w, err)
			return
		}
		if err := cfg.SetTestProfile(doc); err != nil {
			writeInvalidArgument(w, err.Error())
			return
		}
		WriteJSON(w, http.StatusOK, doc)
	}
}

// HandleGetNetworkPolicy returns a handler for GET /settings/network-policy.
func HandleGetNetworkPolicy(cfg *settings.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := cfg.NetworkPolicy()
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, doc)
	}
}

// HandlePutNetworkPolicy returns a handler for PUT /settings/network-policy.
func HandlePutNetworkPolicy(cfg *settings.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var doc settings.NetworkPolicy
		if err := DecodeBody(r, &doc); err != nil {
			writeDecodeBodyError(w, err)
			return
		}
		if err := cfg.SetNetworkPolicy(doc); err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, doc)
	}
}
