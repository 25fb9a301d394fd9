// Package server contains the static-asset serving helper shared by the
// HTTP front-end.
package server

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
)

// ReplyWithFile replies to the client request by serving the named file
// from within root, using http.ServeContent so Range/If-Modified-Since
// headers behave as a browser expects.
func ReplyWithFile(w http.ResponseWriter, r *http.Request, name, root string) {
	filePath, err := filepath.Abs(filepath.Join(root, name))
	if err != nil {
		fstr := fmt.Sprintf("unable to compute abspath of file %s %s %s", root, name, err)
		log.Println(fstr)
		http.Error(w, fstr, http.StatusInternalServerError)
		return
	}

	f, err := os.Open(filePath)
	if err != nil {
		fstr := fmt.Sprintf("asset missing %s", filePath)
		log.Println(fstr)
		http.Error(w, fstr, http.StatusNotFound)
		return
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		fstr := fmt.Sprintf("error retrieving asset stats %s", err)
		log.Println(fstr)
		http.Error(w, fstr, http.StatusNotFound)
		return
	}

	http.ServeContent(w, r, name, stat.ModTime(), f)
}
