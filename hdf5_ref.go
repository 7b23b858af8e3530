// SPDX-License-Identifier: MPL-2.0
/*
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package seegio

// The gonum hdf5 binding does not expose the H5R reference API, so the
// MATLAB cell-of-strings layout (a dataset of object references, each
// pointing at a char-code vector) is read through libhdf5 directly.
// The identifier constants are macros hiding global variables, hence
// the static wrappers.

/*
#cgo LDFLAGS: -lhdf5
#include <stdlib.h>
#include <hdf5.h>

static hid_t seegio_h5f_open(const char *path) {
	return H5Fopen(path, H5F_ACC_RDONLY, H5P_DEFAULT);
}

static hid_t seegio_h5d_open(hid_t file, const char *name) {
	return H5Dopen2(file, name, H5P_DEFAULT);
}

static int seegio_h5d_is_ref(hid_t dset) {
	hid_t t = H5Dget_type(dset);
	if (t < 0) {
		return -1;
	}
	int is_ref = H5Tget_class(t) == H5T_REFERENCE;
	H5Tclose(t);
	return is_ref;
}

static hssize_t seegio_h5d_npoints(hid_t dset) {
	hid_t s = H5Dget_space(dset);
	if (s < 0) {
		return -1;
	}
	hssize_t n = H5Sget_simple_extent_npoints(s);
	H5Sclose(s);
	return n;
}

static herr_t seegio_h5d_read_refs(hid_t dset, hobj_ref_t *buf) {
	return H5Dread(dset, H5T_STD_REF_OBJ, H5S_ALL, H5S_ALL, H5P_DEFAULT, buf);
}

static hid_t seegio_h5r_deref(hid_t dset, hobj_ref_t *ref) {
	return H5Rdereference2(dset, H5P_DEFAULT, H5R_OBJECT, ref);
}

static herr_t seegio_h5d_read_ushort(hid_t dset, unsigned short *buf) {
	return H5Dread(dset, H5T_NATIVE_USHORT, H5S_ALL, H5S_ALL, H5P_DEFAULT, buf);
}
*/
import "C"

import (
	"errors"
	"fmt"
	"strings"
	"unsafe"
)

// errNotReferenceLayout signals that a dataset holds plain data rather
// than object references, so the dense char-matrix path applies.
var errNotReferenceLayout = errors.New("hdf5: dataset does not hold object references")

// readReferencedStrings reads a dataset of object references and
// resolves each reference to a uint16 char-code vector, one string per
// reference.
func readReferencedStrings(path, name string) ([]string, error) {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))
	file := C.seegio_h5f_open(cpath)
	if file < 0 {
		return nil, fmt.Errorf("hdf5: error opening %s", path)
	}
	defer C.H5Fclose(file)

	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	dset := C.seegio_h5d_open(file, cname)
	if dset < 0 {
		return nil, fmt.Errorf("hdf5: error opening dataset %s", name)
	}
	defer C.H5Dclose(dset)

	switch C.seegio_h5d_is_ref(dset) {
	case 1:
	case 0:
		return nil, fmt.Errorf("%s: %w", name, errNotReferenceLayout)
	default:
		return nil, fmt.Errorf("hdf5: error reading datatype of %s", name)
	}

	n := C.seegio_h5d_npoints(dset)
	if n < 0 {
		return nil, fmt.Errorf("hdf5: error reading extent of %s", name)
	}
	if n == 0 {
		return nil, nil
	}

	refs := make([]C.hobj_ref_t, n)
	if C.seegio_h5d_read_refs(dset, &refs[0]) < 0 {
		return nil, fmt.Errorf("hdf5: error reading references from %s", name)
	}

	out := make([]string, n)
	for i := range refs {
		s, err := readReferencedChars(dset, &refs[i])
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", name, i, err)
		}
		out[i] = s
	}
	return out, nil
}

// readReferencedChars dereferences one object reference and reads the
// target dataset as a vector of uint16 character codes.
func readReferencedChars(dset C.hid_t, ref *C.hobj_ref_t) (string, error) {
	obj := C.seegio_h5r_deref(dset, ref)
	if obj < 0 {
		return "", errors.New("hdf5: error dereferencing object reference")
	}
	defer C.H5Dclose(obj)

	n := C.seegio_h5d_npoints(obj)
	if n < 0 {
		return "", errors.New("hdf5: error reading extent of referenced dataset")
	}
	if n == 0 {
		return "", nil
	}

	codes := make([]C.ushort, n)
	if C.seegio_h5d_read_ushort(obj, &codes[0]) < 0 {
		return "", errors.New("hdf5: error reading referenced char data")
	}

	var sb strings.Builder
	for _, c := range codes {
		sb.WriteRune(rune(c))
	}
	return strings.TrimRight(sb.String(), "\x00 "), nil
}
